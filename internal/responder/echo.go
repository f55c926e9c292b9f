package responder

import (
	"context"

	"wxgate/internal/domain"
)

// EchoResponder replies with the inbound text unchanged. It is the fallback
// when no upstream agent is configured, and keeps the gateway exercisable
// end to end.
type EchoResponder struct{}

func NewEcho() *EchoResponder { return &EchoResponder{} }

func (e *EchoResponder) Name() string { return "echo" }

func (e *EchoResponder) Respond(_ context.Context, rc domain.ReplyContext) ([]domain.ReplyPayload, error) {
	if rc.Content == "" {
		return nil, nil
	}
	return []domain.ReplyPayload{{Text: rc.Content}}, nil
}
