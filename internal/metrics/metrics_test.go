package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	m := New()

	m.InboundAccepted.Inc()
	m.InboundAccepted.Add(2)
	if got := m.InboundAccepted.Value(); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}

	m.QueueDepth.Set(5)
	m.QueueDepth.Inc()
	m.QueueDepth.Dec()
	if got := m.QueueDepth.Value(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestHistogramBuckets(t *testing.T) {
	m := New()

	m.DispatchLatency.Observe(0.05)
	m.DispatchLatency.Observe(3)
	m.DispatchLatency.Observe(120)

	out := m.render()
	if !strings.Contains(out, `wxgate_dispatch_latency_seconds_bucket{le="0.1"} 1`) {
		t.Errorf("first bucket should hold one observation:\n%s", out)
	}
	if !strings.Contains(out, `wxgate_dispatch_latency_seconds_bucket{le="+Inf"} 3`) {
		t.Errorf("+Inf bucket should hold all observations:\n%s", out)
	}
	if !strings.Contains(out, "wxgate_dispatch_latency_seconds_count 3") {
		t.Errorf("count should be 3:\n%s", out)
	}
}

func TestHandlerRendersExposition(t *testing.T) {
	m := New()
	m.HTTPRequests.Inc()

	rec := httptest.NewRecorder()
	m.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %s", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "# TYPE wxgate_http_requests_total counter") {
		t.Errorf("missing counter type line:\n%s", body)
	}
	if !strings.Contains(body, "wxgate_http_requests_total 1") {
		t.Errorf("missing counter sample:\n%s", body)
	}
	if !strings.Contains(body, "wxgate_uptime_seconds") {
		t.Errorf("missing uptime gauge:\n%s", body)
	}
}
