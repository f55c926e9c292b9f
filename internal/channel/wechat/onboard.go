package wechat

import (
	"fmt"
	"strings"

	"wxgate/internal/config"
)

// OnboardStatus describes the channel's onboarding state. The channel counts
// as configured once a gateway base URL is set.
type OnboardStatus struct {
	Configured bool
	Enabled    bool
	Name       string
	BaseURL    string
	TokenSet   bool
}

func (c *Channel) OnboardStatus() OnboardStatus {
	acct := ResolveAccount(c.rt.Config(), DefaultAccountID)
	base := acct.BaseURL()
	return OnboardStatus{
		Configured: base != "",
		Enabled:    acct.Enabled,
		Name:       acct.Name,
		BaseURL:    base,
		TokenSet:   strings.TrimSpace(acct.Config.InboundToken) != "",
	}
}

// Configure persists the gateway endpoint and optional inbound token, forcing
// the channel back on. Trailing slashes are stripped so URL joins never
// double up.
func (c *Channel) Configure(baseURL, token, name string) error {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return fmt.Errorf("wechat configure: base URL is required")
	}

	return c.rt.UpdateConfig(func(cfg *config.Config) error {
		wc := &cfg.Channels.WeChat
		enabled := true
		wc.Enabled = &enabled
		wc.JSONBotBaseURL = baseURL
		wc.InboundToken = strings.TrimSpace(token)
		if name != "" {
			wc.Name = name
		}
		return nil
	})
}

// Disable turns the channel off without clearing its configuration.
func (c *Channel) Disable() error {
	return c.rt.UpdateConfig(func(cfg *config.Config) error {
		disabled := false
		cfg.Channels.WeChat.Enabled = &disabled
		return nil
	})
}
