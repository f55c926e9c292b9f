package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"wxgate/internal/config"
	"wxgate/internal/domain"
	"wxgate/internal/metrics"
)

// HTTPHandler is the plugin-facing HTTP registration contract. HandleHTTP
// returns false when the request is not for this handler, letting the next
// registered handler try it.
type HTTPHandler interface {
	HandleHTTP(w http.ResponseWriter, r *http.Request) bool
}

// Options wires the runtime's collaborators. Config, Logger, Bus and Sessions
// are required.
type Options struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Bus        domain.MessageBus
	Sessions   domain.SessionStore
	Responder  domain.Responder
	Metrics    *metrics.Metrics // optional, a fresh set is created when nil
}

// Runtime is the host side of the plugin API: it owns configuration, the
// message bus, the session store, the dispatch pipeline and the HTTP server
// that registered handlers mount on. Plugins receive the runtime at
// construction time; there is no global slot.
type Runtime struct {
	cfg       *config.Config
	cfgPath   string
	cfgMu     sync.RWMutex
	logger    *slog.Logger
	bus       domain.MessageBus
	sessions  domain.SessionStore
	responder domain.Responder
	tasks     *TaskRunner
	metrics   *metrics.Metrics

	regMu    sync.RWMutex
	channels map[string]domain.Channel
	handlers []HTTPHandler

	server *http.Server
}

func New(opts Options) (*Runtime, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("runtime: config is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("runtime: logger is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("runtime: message bus is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("runtime: session store is required")
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Runtime{
		cfg:       opts.Config,
		cfgPath:   opts.ConfigPath,
		logger:    opts.Logger,
		bus:       opts.Bus,
		sessions:  opts.Sessions,
		responder: opts.Responder,
		tasks:     newTaskRunner(opts.Config.General.Workers, opts.Config.General.QueueSize, opts.Logger.With("component", "tasks"), m.QueueDepth),
		metrics:   m,
		channels:  make(map[string]domain.Channel),
	}, nil
}

func (rt *Runtime) Logger() *slog.Logger          { return rt.logger }
func (rt *Runtime) Bus() domain.MessageBus        { return rt.bus }
func (rt *Runtime) Sessions() domain.SessionStore { return rt.sessions }
func (rt *Runtime) Tasks() *TaskRunner            { return rt.tasks }
func (rt *Runtime) Metrics() *metrics.Metrics     { return rt.metrics }

// Config returns the current configuration. Callers must treat it as
// read-only; mutations go through UpdateConfig.
func (rt *Runtime) Config() *config.Config {
	rt.cfgMu.RLock()
	defer rt.cfgMu.RUnlock()
	return rt.cfg
}

// UpdateConfig applies a mutation to a copy of the config, validates it,
// persists it when a config path is known, then swaps it in.
func (rt *Runtime) UpdateConfig(apply func(*config.Config) error) error {
	rt.cfgMu.Lock()
	defer rt.cfgMu.Unlock()

	cp, err := config.Clone(rt.cfg)
	if err != nil {
		return fmt.Errorf("clone config: %w", err)
	}
	if err := apply(cp); err != nil {
		return err
	}
	if err := config.Validate(cp); err != nil {
		return err
	}
	if rt.cfgPath != "" {
		if err := config.Save(rt.cfgPath, cp); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}
	rt.cfg = cp
	return nil
}

// RegisterChannel adds a channel to the registry. Names must be unique.
func (rt *Runtime) RegisterChannel(ch domain.Channel) error {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()

	name := ch.Name()
	if _, exists := rt.channels[name]; exists {
		return fmt.Errorf("channel already registered: %s", name)
	}
	rt.channels[name] = ch
	rt.logger.Info("channel registered", "channel", name)
	return nil
}

// Channel returns a registered channel by name.
func (rt *Runtime) Channel(name string) (domain.Channel, bool) {
	rt.regMu.RLock()
	defer rt.regMu.RUnlock()
	ch, ok := rt.channels[name]
	return ch, ok
}

// RegisterHTTPHandler appends a handler to the dispatch chain. Handlers are
// tried in registration order.
func (rt *Runtime) RegisterHTTPHandler(h HTTPHandler) {
	rt.regMu.Lock()
	defer rt.regMu.Unlock()
	rt.handlers = append(rt.handlers, h)
}

// Handler builds the HTTP entry point: chi router with request-id and CORS
// middleware, a health endpoint, and the plugin handler chain on everything
// else.
func (rt *Runtime) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(rt.requestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-OpenClaw-Token"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/metrics", rt.metrics.Handler())

	r.HandleFunc("/*", rt.dispatchHTTP)
	return r
}

func (rt *Runtime) dispatchHTTP(w http.ResponseWriter, r *http.Request) {
	rt.regMu.RLock()
	handlers := make([]HTTPHandler, len(rt.handlers))
	copy(handlers, rt.handlers)
	rt.regMu.RUnlock()

	for _, h := range handlers {
		if h.HandleHTTP(w, r) {
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "not found"})
}

// StartChannels starts every registered channel on its own goroutine.
func (rt *Runtime) StartChannels(ctx context.Context) {
	rt.regMu.RLock()
	defer rt.regMu.RUnlock()

	for name, ch := range rt.channels {
		go func(name string, ch domain.Channel) {
			if err := ch.Start(ctx, rt.bus); err != nil {
				rt.logger.Error("channel stopped with error", "channel", name, "err", err)
			}
		}(name, ch)
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (rt *Runtime) Serve(ctx context.Context) error {
	cfg := rt.Config()
	rt.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rt.logger.Info("gateway server starting", "addr", rt.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := rt.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		rt.logger.Info("gateway server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return rt.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("gateway server: %w", err)
	}
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestID returns the correlation id attached by the request-id middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (rt *Runtime) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rt.metrics.HTTPRequests.Inc()
		next.ServeHTTP(w, r)
		rt.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"elapsed", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
