package domain

import "context"

// SessionMeta describes the inbound event being recorded against a session.
type SessionMeta struct {
	Channel       string
	AccountID     string
	Sender        string
	LastInboundMs int64
}

// SessionStore persists per-session routing metadata. Touch is best-effort
// from the caller's point of view: a failed update must never block message
// processing.
type SessionStore interface {
	Touch(ctx context.Context, sessionKey string, meta SessionMeta) error
	LastInbound(ctx context.Context, sessionKey string) (int64, error)
	Close() error
}
