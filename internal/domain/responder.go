package domain

import "context"

// ReplyContext is a routed, enveloped inbound message ready for dispatch.
type ReplyContext struct {
	SessionKey  string
	AgentID     string
	Channel     string
	AccountID   string
	SenderID    string
	Content     string
	Envelope    string
	TimestampMs int64
}

// Responder turns an inbound context into zero or more reply payloads.
type Responder interface {
	Name() string
	Respond(ctx context.Context, rc ReplyContext) ([]ReplyPayload, error)
}
