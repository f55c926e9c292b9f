package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"wxgate/internal/metrics"
)

const submitTimeout = 10 * time.Second

type task struct {
	id   string
	name string
	fn   func(ctx context.Context) error
}

// TaskRunner executes fire-and-forget continuations on a bounded worker pool.
// Task errors are logged, never propagated: by the time a task runs, the
// request that spawned it has already been answered.
type TaskRunner struct {
	queue   chan task
	workers int
	logger  *slog.Logger
	depth   *metrics.Gauge // optional queue depth gauge
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

func NewTaskRunner(workers, queueSize int, logger *slog.Logger) *TaskRunner {
	return newTaskRunner(workers, queueSize, logger, nil)
}

func newTaskRunner(workers, queueSize int, logger *slog.Logger, depth *metrics.Gauge) *TaskRunner {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &TaskRunner{
		queue:   make(chan task, queueSize),
		workers: workers,
		logger:  logger,
		depth:   depth,
	}
}

func (tr *TaskRunner) observeDepth() {
	if tr.depth != nil {
		tr.depth.Set(int64(len(tr.queue)))
	}
}

// Start spawns the worker goroutines. Tasks receive ctx so they stop at
// shutdown.
func (tr *TaskRunner) Start(ctx context.Context) {
	for i := 0; i < tr.workers; i++ {
		tr.wg.Add(1)
		go func() {
			defer tr.wg.Done()
			for t := range tr.queue {
				tr.observeDepth()
				start := time.Now()
				if err := t.fn(ctx); err != nil {
					tr.logger.Error("background task failed",
						"task", t.name,
						"task_id", t.id,
						"err", err,
						"elapsed", time.Since(start),
					)
					continue
				}
				tr.logger.Debug("background task done", "task", t.name, "task_id", t.id, "elapsed", time.Since(start))
			}
		}()
	}
}

// Submit enqueues a task and returns its id. When the queue is full it blocks
// up to 10 seconds before dropping the task with an error log.
func (tr *TaskRunner) Submit(name string, fn func(ctx context.Context) error) string {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if tr.closed {
		tr.logger.Warn("task submitted after shutdown", "task", name)
		return ""
	}

	t := task{id: uuid.NewString(), name: name, fn: fn}

	select {
	case tr.queue <- t:
		tr.observeDepth()
		return t.id
	default:
	}

	tr.logger.Warn("task queue full, waiting", "task", name)
	timer := time.NewTimer(submitTimeout)
	defer timer.Stop()
	select {
	case tr.queue <- t:
		tr.observeDepth()
		return t.id
	case <-timer.C:
		tr.logger.Error("task dropped: queue full", "task", name, "task_id", t.id)
		return ""
	}
}

// Close stops accepting tasks and waits for queued ones to drain.
func (tr *TaskRunner) Close() {
	tr.mu.Lock()
	if tr.closed {
		tr.mu.Unlock()
		return
	}
	tr.closed = true
	tr.mu.Unlock()

	close(tr.queue)
	tr.wg.Wait()
}
