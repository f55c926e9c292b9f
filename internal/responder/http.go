package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"wxgate/internal/domain"
)

const defaultAgentTimeout = 60 * time.Second

// HTTPResponder forwards the enveloped inbound context to an upstream agent
// service and maps its JSON reply onto reply payloads.
type HTTPResponder struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

type HTTPConfig struct {
	URL     string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewHTTP(cfg HTTPConfig) *HTTPResponder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultAgentTimeout
	}
	return &HTTPResponder{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: cfg.Logger,
	}
}

func (r *HTTPResponder) Name() string { return "http" }

type agentRequest struct {
	SessionKey  string `json:"session_key"`
	AgentID     string `json:"agent_id"`
	Channel     string `json:"channel"`
	Sender      string `json:"sender"`
	Content     string `json:"content"`
	Envelope    string `json:"envelope"`
	TimestampMs int64  `json:"timestamp_ms"`
}

type agentResponse struct {
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls,omitempty"`
	Media     string   `json:"media,omitempty"`
}

func (r *HTTPResponder) Respond(ctx context.Context, rc domain.ReplyContext) ([]domain.ReplyPayload, error) {
	body, err := json.Marshal(agentRequest{
		SessionKey:  rc.SessionKey,
		AgentID:     rc.AgentID,
		Channel:     rc.Channel,
		Sender:      rc.SenderID,
		Content:     rc.Content,
		Envelope:    rc.Envelope,
		TimestampMs: rc.TimestampMs,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal agent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build agent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("agent returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out agentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode agent response: %w", err)
	}

	if out.Text == "" && len(out.MediaURLs) == 0 && out.Media == "" {
		return nil, nil
	}

	return []domain.ReplyPayload{{
		Text:      out.Text,
		MediaURLs: out.MediaURLs,
		Media:     out.Media,
	}}, nil
}
