package domain

import "context"

// Channel is the interface for user-facing messaging surfaces (WeChat, Telegram).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
	Send(ctx context.Context, chatID string, content string) error
}
