// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for the gateway. It outputs text/plain in Prometheus exposition
// format without requiring the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram tracks the distribution of observed values in fixed buckets.
type Histogram struct {
	name    string
	help    string
	mu      sync.Mutex
	count   int64
	sum     float64
	buckets []histBucket
}

type histBucket struct {
	le    float64
	count int64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i := range h.buckets {
		if v <= h.buckets[i].le {
			h.buckets[i].count++
		}
	}
}

// ObserveSince records the elapsed time since start in seconds.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Metrics holds the gateway's counters, gauges and histograms and renders
// them in Prometheus text format. Collaborators receive it by injection;
// there is no package-level instance.
type Metrics struct {
	startTime time.Time

	HTTPRequests    *Counter
	InboundAccepted *Counter
	InboundRejected *Counter
	DispatchErrors  *Counter
	RepliesSent     *Counter
	GatewayPosts    *Counter
	GatewayFailures *Counter
	QueueDepth      *Gauge

	DispatchLatency *Histogram

	counters   []*Counter
	gauges     []*Gauge
	histograms []*Histogram
}

// New creates a metrics set with all gateway instruments registered.
func New() *Metrics {
	m := &Metrics{startTime: time.Now()}

	m.HTTPRequests = m.counter("wxgate_http_requests_total", "Total HTTP requests served")
	m.InboundAccepted = m.counter("wxgate_inbound_accepted_total", "Inbound webhook messages accepted")
	m.InboundRejected = m.counter("wxgate_inbound_rejected_total", "Inbound webhook messages rejected")
	m.DispatchErrors = m.counter("wxgate_dispatch_errors_total", "Dispatch attempts that ended in error")
	m.RepliesSent = m.counter("wxgate_replies_sent_total", "Reply blocks delivered to channels")
	m.GatewayPosts = m.counter("wxgate_gateway_posts_total", "Outbound posts to the chat gateway")
	m.GatewayFailures = m.counter("wxgate_gateway_failures_total", "Failed outbound posts to the chat gateway")
	m.QueueDepth = m.gauge("wxgate_task_queue_depth", "Queued dispatch tasks awaiting a worker")

	m.DispatchLatency = m.histogram("wxgate_dispatch_latency_seconds",
		"End-to-end dispatch latency in seconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60})

	return m
}

// Uptime returns how long the metrics set has been alive.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

func (m *Metrics) counter(name, help string) *Counter {
	c := &Counter{name: name, help: help}
	m.counters = append(m.counters, c)
	return c
}

func (m *Metrics) gauge(name, help string) *Gauge {
	g := &Gauge{name: name, help: help}
	m.gauges = append(m.gauges, g)
	return g
}

func (m *Metrics) histogram(name, help string, buckets []float64) *Histogram {
	sort.Float64s(buckets)
	hb := make([]histBucket, len(buckets))
	for i, b := range buckets {
		hb[i] = histBucket{le: b}
	}
	h := &Histogram{name: name, help: help, buckets: hb}
	m.histograms = append(m.histograms, h)
	return h
}

// Handler renders the metrics in Prometheus text exposition format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, m.render())
	}
}

func (m *Metrics) render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP wxgate_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE wxgate_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "wxgate_uptime_seconds %d\n\n", int64(m.Uptime().Seconds()))

	for _, c := range m.counters {
		fmt.Fprintf(&sb, "# HELP %s %s\n", c.name, c.help)
		fmt.Fprintf(&sb, "# TYPE %s counter\n", c.name)
		fmt.Fprintf(&sb, "%s %d\n", c.name, c.Value())
	}
	for _, g := range m.gauges {
		fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
		fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
		fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
	}
	for _, h := range m.histograms {
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n", h.name, h.help)
		fmt.Fprintf(&sb, "# TYPE %s histogram\n", h.name)
		for _, b := range h.buckets {
			fmt.Fprintf(&sb, "%s_bucket{le=\"%g\"} %d\n", h.name, b.le, b.count)
		}
		fmt.Fprintf(&sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, h.count)
		fmt.Fprintf(&sb, "%s_count %d\n", h.name, h.count)
		fmt.Fprintf(&sb, "%s_sum %f\n", h.name, h.sum)
		h.mu.Unlock()
	}

	return sb.String()
}
