package wechat

import (
	"strings"

	"wxgate/internal/config"
)

const (
	// ChannelName is the registry and config key for this channel.
	ChannelName = "wechat"

	// DefaultAccountID is the only addressable account: the json_bot bridge
	// is single-account by design of the upstream gateway.
	DefaultAccountID = "default"
)

// Account is the resolved view of the channel's configured account. It is
// derived on every access, never stored.
type Account struct {
	AccountID string
	Enabled   bool
	Name      string
	Config    config.WeChatConfig
}

// ResolveAccount derives the account record from the current configuration.
// Enabled is true unless the config says false explicitly.
func ResolveAccount(cfg *config.Config, accountID string) Account {
	if accountID == "" {
		accountID = DefaultAccountID
	}
	wc := cfg.Channels.WeChat
	return Account{
		AccountID: accountID,
		Enabled:   wc.Enabled == nil || *wc.Enabled,
		Name:      wc.Name,
		Config:    wc,
	}
}

// BaseURL returns the configured gateway base URL with trailing slashes
// stripped, or "" when unconfigured.
func (a Account) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(a.Config.JSONBotBaseURL), "/")
}
