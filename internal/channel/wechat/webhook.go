package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"wxgate/internal/domain"
	"wxgate/internal/runtime"
)

const (
	webhookPath  = "/webhook/wechat"
	maxBodyBytes = 256 << 10

	tokenHeader = "X-OpenClaw-Token"
)

// HandleHTTP implements runtime.HTTPHandler. It claims only POSTs to the
// webhook path; everything else falls through to other registered handlers.
func (c *Channel) HandleHTTP(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost || r.URL.Path != webhookPath {
		return false
	}
	c.handleWebhook(w, r)
	return true
}

func (c *Channel) handleWebhook(w http.ResponseWriter, r *http.Request) {
	acct := ResolveAccount(c.rt.Config(), DefaultAccountID)
	reqID := runtime.RequestID(r.Context())

	if token := strings.TrimSpace(acct.Config.InboundToken); token != "" {
		if inboundToken(r) != token {
			c.logger.Warn("webhook rejected: bad token", "request_id", reqID)
			c.rt.Metrics().InboundRejected.Inc()
			writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "unauthorized"})
			return
		}
	}

	body, err := readBody(r)
	if err != nil {
		c.rt.Metrics().InboundRejected.Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
		return
	}

	// An empty body parses to an empty object so the field checks below
	// produce the friendlier error.
	payload := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			c.rt.Metrics().InboundRejected.Inc()
			writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid JSON: " + err.Error()})
			return
		}
	}

	sender := trimmedField(payload, "sender")
	message := trimmedField(payload, "message")
	if sender == "" || message == "" {
		c.rt.Metrics().InboundRejected.Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "missing sender or message"})
		return
	}

	// The payload's "type" field is accepted but carries no routing meaning.

	c.rt.Metrics().InboundAccepted.Inc()
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})

	// Response is committed; everything below is fire-and-forget and may
	// only log.
	ms := timestampMs(payload)
	c.logger.Info("webhook accepted",
		"sender", sender,
		"text_len", len(message),
		"request_id", reqID,
	)

	c.rt.Tasks().Submit("wechat-inbound", func(taskCtx context.Context) error {
		c.rt.ProcessInbound(taskCtx, domain.InboundMessage{
			Channel:   ChannelName,
			AccountID: DefaultAccountID,
			ChatID:    sender,
			SenderID:  sender,
			Content:   message,
			Timestamp: time.UnixMilli(ms),
		}, c.deliverTo(taskCtx, sender), func(err error) {
			c.logger.Error("inbound dispatch failed", "sender", sender, "request_id", reqID, "err", err)
		})
		return nil
	})
}

// deliverTo returns the delivery callback for one inbound sender: text first,
// then each media URL as its own file POST. Failures are logged and do not
// halt remaining sends.
func (c *Channel) deliverTo(ctx context.Context, target string) func(domain.ReplyPayload) {
	return func(p domain.ReplyPayload) {
		acct := ResolveAccount(c.rt.Config(), DefaultAccountID)
		base := acct.BaseURL()
		if base == "" {
			c.logger.Error("reply dropped: channels.wechat.jsonBotBaseUrl is not configured")
			return
		}

		if strings.TrimSpace(p.Text) != "" {
			res := c.post(ctx, base+replyPath, replyRequest{
				SessionName: target,
				Content:     p.Text,
				Type:        "text",
			}, textTimeout)
			if !res.OK {
				c.logger.Error("reply text post failed", "target", target, "status", res.Status, "err", res.Err)
			}
		}

		for _, u := range p.AllMedia() {
			res := c.post(ctx, base+replyPath, replyRequest{
				SessionName: target,
				Content:     u,
				Type:        "file",
			}, fileTimeout)
			if !res.OK {
				c.logger.Error("reply media post failed", "target", target, "url", u, "status", res.Status, "err", res.Err)
			}
		}
	}
}

// inboundToken extracts the caller's token from the Authorization bearer
// header, falling back to the custom header.
func inboundToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get(tokenHeader))
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

func trimmedField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return strings.TrimSpace(s)
}

// timestampMs converts the payload's optional fractional-seconds timestamp to
// rounded milliseconds, falling back to the current clock.
func timestampMs(payload map[string]any) int64 {
	if ts, ok := payload["timestamp"].(float64); ok && ts > 0 {
		return int64(math.Round(ts * 1000))
	}
	return time.Now().UnixMilli()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
