package wechat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	replyPath = "/reply"

	textTimeout    = 5 * time.Second
	captionTimeout = 5 * time.Second
	fileTimeout    = 15 * time.Second
)

// replyRequest is the wire format of a single POST to <base>/reply.
type replyRequest struct {
	SessionName string `json:"session_name"`
	Content     string `json:"content"`
	Type        string `json:"type"`
}

// postResult is the structured outcome of one gateway POST. The helper never
// returns a Go error: transport failures, timeouts and non-2xx statuses all
// land in Err.
type postResult struct {
	OK     bool
	Status int
	Err    string
}

// gatewayClient issues JSON POSTs to the json_bot gateway. Timeouts are
// per-call via context so text and file deliveries can differ.
type gatewayClient struct {
	client *http.Client
	logger *slog.Logger
}

func newGatewayClient(logger *slog.Logger) *gatewayClient {
	return &gatewayClient{
		client: &http.Client{},
		logger: logger,
	}
}

func (g *gatewayClient) postJSON(ctx context.Context, url string, payload replyRequest, timeout time.Duration) postResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return postResult{Err: fmt.Sprintf("marshal: %v", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return postResult{Err: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return postResult{Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return postResult{OK: true, Status: resp.StatusCode}
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(respBody))
	if msg == "" {
		msg = resp.Status
	}
	return postResult{Status: resp.StatusCode, Err: msg}
}

// post wraps a gateway POST with delivery counters.
func (c *Channel) post(ctx context.Context, url string, payload replyRequest, timeout time.Duration) postResult {
	c.rt.Metrics().GatewayPosts.Inc()
	res := c.gateway.postJSON(ctx, url, payload, timeout)
	if !res.OK {
		c.rt.Metrics().GatewayFailures.Inc()
	}
	return res
}

// normalizeTarget strips a leading wechat:/wx: scheme prefix
// (case-insensitive) and surrounding whitespace from a destination id.
func normalizeTarget(to string) string {
	s := strings.TrimSpace(to)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"wechat:", "wx:"} {
		if strings.HasPrefix(lower, prefix) {
			return strings.TrimSpace(s[len(prefix):])
		}
	}
	return s
}

// newMessageID synthesizes an outbound message identifier. The gateway does
// not return one.
func newMessageID() string {
	return fmt.Sprintf("wechat:%d", time.Now().UnixMilli())
}

// SendResult reports a completed outbound send.
type SendResult struct {
	MessageID string
	ChatID    string
}

// SendText delivers one text message through the gateway.
func (c *Channel) SendText(ctx context.Context, to, text string) (SendResult, error) {
	acct := ResolveAccount(c.rt.Config(), DefaultAccountID)
	base := acct.BaseURL()
	if base == "" {
		return SendResult{}, fmt.Errorf("wechat send: channels.wechat.jsonBotBaseUrl is not configured")
	}

	target := normalizeTarget(to)
	res := c.post(ctx, base+replyPath, replyRequest{
		SessionName: target,
		Content:     text,
		Type:        "text",
	}, textTimeout)
	if !res.OK {
		return SendResult{}, fmt.Errorf("wechat text delivery failed (status %d): %s", res.Status, res.Err)
	}

	return SendResult{MessageID: newMessageID(), ChatID: target}, nil
}

// SendMedia delivers a media URL, preceded by its caption when present. A
// failed caption aborts the send before the file POST goes out.
func (c *Channel) SendMedia(ctx context.Context, to, caption, mediaURL string) (SendResult, error) {
	acct := ResolveAccount(c.rt.Config(), DefaultAccountID)
	base := acct.BaseURL()
	if base == "" {
		return SendResult{}, fmt.Errorf("wechat send: channels.wechat.jsonBotBaseUrl is not configured")
	}

	target := normalizeTarget(to)

	if strings.TrimSpace(caption) != "" {
		res := c.post(ctx, base+replyPath, replyRequest{
			SessionName: target,
			Content:     caption,
			Type:        "text",
		}, captionTimeout)
		if !res.OK {
			return SendResult{}, fmt.Errorf("wechat caption delivery failed (status %d): %s", res.Status, res.Err)
		}
	}

	res := c.post(ctx, base+replyPath, replyRequest{
		SessionName: target,
		Content:     mediaURL,
		Type:        "file",
	}, fileTimeout)
	if !res.OK {
		return SendResult{}, fmt.Errorf("wechat file delivery failed (status %d): %s", res.Status, res.Err)
	}

	return SendResult{MessageID: newMessageID(), ChatID: target}, nil
}
