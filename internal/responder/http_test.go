package responder

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"wxgate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testReplyContext() domain.ReplyContext {
	return domain.ReplyContext{
		SessionKey:  "wechat:default:Alice",
		AgentID:     "default",
		Channel:     "wechat",
		AccountID:   "default",
		SenderID:    "Alice",
		Content:     "Hi",
		Envelope:    "[wechat] Alice: Hi",
		TimestampMs: 1700000000500,
	}
}

func TestHTTPResponder_Success(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "Hello back"})
	}))
	defer server.Close()

	r := NewHTTP(HTTPConfig{URL: server.URL, Logger: testLogger()})
	payloads, err := r.Respond(context.Background(), testReplyContext())
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(payloads) != 1 || payloads[0].Text != "Hello back" {
		t.Fatalf("unexpected payloads: %+v", payloads)
	}

	if got["session_key"] != "wechat:default:Alice" {
		t.Errorf("unexpected session_key: %v", got["session_key"])
	}
	if got["envelope"] != "[wechat] Alice: Hi" {
		t.Errorf("unexpected envelope: %v", got["envelope"])
	}
	if got["timestamp_ms"] != float64(1700000000500) {
		t.Errorf("unexpected timestamp_ms: %v", got["timestamp_ms"])
	}
}

func TestHTTPResponder_MediaReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"text":       "here you go",
			"media_urls": []string{"http://x/a.png"},
			"media":      "http://x/b.png",
		})
	}))
	defer server.Close()

	r := NewHTTP(HTTPConfig{URL: server.URL, Logger: testLogger()})
	payloads, err := r.Respond(context.Background(), testReplyContext())
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(payloads))
	}
	media := payloads[0].AllMedia()
	if len(media) != 2 || media[0] != "http://x/a.png" || media[1] != "http://x/b.png" {
		t.Errorf("unexpected media: %v", media)
	}
}

func TestHTTPResponder_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent on fire", http.StatusBadGateway)
	}))
	defer server.Close()

	r := NewHTTP(HTTPConfig{URL: server.URL, Logger: testLogger()})
	_, err := r.Respond(context.Background(), testReplyContext())
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}
	if want := "agent returned 502"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should mention %q", err, want)
	}
	if !strings.Contains(err.Error(), "agent on fire") {
		t.Errorf("error %q should carry the response body", err)
	}
}

func TestHTTPResponder_EmptyReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer server.Close()

	r := NewHTTP(HTTPConfig{URL: server.URL, Logger: testLogger()})
	payloads, err := r.Respond(context.Background(), testReplyContext())
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if len(payloads) != 0 {
		t.Errorf("empty agent reply should yield no payloads, got %+v", payloads)
	}
}

func TestEchoResponder(t *testing.T) {
	r := NewEcho()
	payloads, err := r.Respond(context.Background(), testReplyContext())
	if err != nil {
		t.Fatal(err)
	}
	if len(payloads) != 1 || payloads[0].Text != "Hi" {
		t.Fatalf("unexpected payloads: %+v", payloads)
	}
}
