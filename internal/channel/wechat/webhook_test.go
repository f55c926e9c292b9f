package wechat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wxgate/internal/config"
)

func postWebhook(t *testing.T, ch *Channel, body string, header func(*http.Request)) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, webhookPath, bytes.NewBufferString(body))
	if header != nil {
		header(req)
	}
	rr := httptest.NewRecorder()
	handled := ch.HandleHTTP(rr, req)
	return rr, handled
}

func TestWebhook_IgnoresOtherMethodsAndPaths(t *testing.T) {
	ch := newTestChannel(t, nil)

	req := httptest.NewRequest(http.MethodGet, webhookPath, nil)
	if ch.HandleHTTP(httptest.NewRecorder(), req) {
		t.Error("GET should not be claimed")
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/other", bytes.NewBufferString("{}"))
	if ch.HandleHTTP(httptest.NewRecorder(), req) {
		t.Error("other paths should not be claimed")
	}
}

func TestWebhook_QueryStringIgnored(t *testing.T) {
	ch := newTestChannel(t, nil)

	req := httptest.NewRequest(http.MethodPost, webhookPath+"?src=test", bytes.NewBufferString(`{}`))
	rr := httptest.NewRecorder()
	if !ch.HandleHTTP(rr, req) {
		t.Fatal("POST with query string should still be claimed")
	}
}

func TestWebhook_Unauthorized(t *testing.T) {
	rs := newReplyServer(t, nil)
	ch := newTestChannel(t, func(cfg *config.Config) {
		cfg.Channels.WeChat.JSONBotBaseURL = rs.server.URL
		cfg.Channels.WeChat.InboundToken = "secret"
	})

	rr, handled := postWebhook(t, ch, `{"sender":"Alice","message":"Hi"}`, nil)
	if !handled {
		t.Fatal("request should be claimed")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "unauthorized") {
		t.Errorf("expected unauthorized error body, got %s", rr.Body.String())
	}

	rr, _ = postWebhook(t, ch, `{"sender":"Alice","message":"Hi"}`, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong bearer token, got %d", rr.Code)
	}

	// No downstream delivery should follow a rejected request.
	time.Sleep(100 * time.Millisecond)
	if len(rs.recorded()) != 0 {
		t.Error("rejected requests must not reach the gateway")
	}
}

func TestWebhook_TokenAccepted(t *testing.T) {
	ch := newTestChannel(t, func(cfg *config.Config) {
		cfg.Channels.WeChat.InboundToken = " secret "
	})

	rr, _ := postWebhook(t, ch, `{"sender":"Alice","message":"Hi"}`, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer secret")
	})
	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202 for bearer token, got %d: %s", rr.Code, rr.Body.String())
	}

	rr, _ = postWebhook(t, ch, `{"sender":"Alice","message":"Hi"}`, func(r *http.Request) {
		r.Header.Set(tokenHeader, "secret")
	})
	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202 for custom header token, got %d", rr.Code)
	}
}

func TestWebhook_MissingFields(t *testing.T) {
	ch := newTestChannel(t, nil)

	for _, body := range []string{
		`{"sender":"Alice"}`,
		`{"message":"Hi"}`,
		`{"sender":"  ","message":"Hi"}`,
		`{"sender":"Alice","message":"   "}`,
		`{}`,
		``, // empty body parses to an empty object
	} {
		rr, _ := postWebhook(t, ch, body, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "missing sender or message") {
			t.Errorf("body %q: unexpected error body: %s", body, rr.Body.String())
		}
	}
}

func TestWebhook_InvalidJSON(t *testing.T) {
	ch := newTestChannel(t, nil)

	rr, _ := postWebhook(t, ch, "not json", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestWebhook_BodyTooLarge(t *testing.T) {
	ch := newTestChannel(t, nil)

	big := strings.Repeat("x", maxBodyBytes+1)
	rr, _ := postWebhook(t, ch, big, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversized body, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "exceeds") {
		t.Errorf("expected size error, got %s", rr.Body.String())
	}
}

func TestWebhook_AcceptedAndDispatched(t *testing.T) {
	rs := newReplyServer(t, nil)
	ch := newTestChannel(t, func(cfg *config.Config) {
		cfg.Channels.WeChat.JSONBotBaseURL = rs.server.URL
	})

	rr, handled := postWebhook(t, ch, `{"sender":"Alice","message":"Hi","timestamp":1700000000.5}`, nil)
	if !handled {
		t.Fatal("request should be claimed")
	}
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var ack map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}
	if ok, _ := ack["ok"].(bool); !ok {
		t.Errorf("expected ok:true ack, got %v", ack)
	}

	// The echo responder relays the inbound text back through the gateway.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(rs.recorded()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	reqs := rs.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected one gateway POST, got %d", len(reqs))
	}
	if reqs[0].SessionName != "Alice" || reqs[0].Content != "Hi" || reqs[0].Type != "text" {
		t.Errorf("unexpected gateway request: %+v", reqs[0])
	}
}

func TestWebhook_UnknownTypeFieldIgnored(t *testing.T) {
	ch := newTestChannel(t, nil)

	rr, _ := postWebhook(t, ch, `{"sender":"Alice","message":"Hi","type":"sticker"}`, nil)
	if rr.Code != http.StatusAccepted {
		t.Errorf("unknown type should not change acceptance, got %d", rr.Code)
	}
}

func TestTimestampMs(t *testing.T) {
	ms := timestampMs(map[string]any{"timestamp": float64(1700000000.5)})
	if ms != 1700000000500 {
		t.Errorf("expected 1700000000500, got %d", ms)
	}

	before := time.Now().UnixMilli()
	ms = timestampMs(map[string]any{})
	if ms < before {
		t.Error("missing timestamp should fall back to the current clock")
	}
}
