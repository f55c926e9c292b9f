package wechat

import (
	"context"
	"fmt"
	"log/slog"

	"wxgate/internal/domain"
	"wxgate/internal/runtime"
)

// Channel bridges the json_bot WeChat gateway into the host runtime. Inbound
// traffic arrives on the runtime-hosted webhook; outbound traffic goes out as
// JSON POSTs to the configured gateway.
type Channel struct {
	rt      *runtime.Runtime
	logger  *slog.Logger
	gateway *gatewayClient
}

// New builds the channel against a host runtime. The runtime is mandatory:
// every entry point needs its config, tasks and dispatch pipeline, so a
// missing runtime is a wiring bug surfaced at construction.
func New(rt *runtime.Runtime) (*Channel, error) {
	if rt == nil {
		return nil, fmt.Errorf("wechat: runtime is not initialized")
	}
	logger := rt.Logger().With("channel", ChannelName)
	return &Channel{
		rt:      rt,
		logger:  logger,
		gateway: newGatewayClient(logger),
	}, nil
}

// Register constructs the channel and wires it into the host's plugin API:
// the channel registry and the HTTP handler chain.
func Register(rt *runtime.Runtime) (*Channel, error) {
	c, err := New(rt)
	if err != nil {
		return nil, err
	}
	if err := rt.RegisterChannel(c); err != nil {
		return nil, err
	}
	rt.RegisterHTTPHandler(c)
	return c, nil
}

func (c *Channel) Name() string { return ChannelName }

// Start registers the outbound bus handler. The webhook listener is hosted by
// the runtime's HTTP server, so there is nothing to poll here.
func (c *Channel) Start(ctx context.Context, bus domain.MessageBus) error {
	bus.OnOutbound(ChannelName, func(msg domain.OutboundMessage) {
		if msg.Content != "" {
			if _, err := c.SendText(ctx, msg.ChatID, msg.Content); err != nil {
				c.logger.Error("wechat send failed", "chat", msg.ChatID, "err", err)
			}
		}
		for _, u := range msg.MediaURLs {
			if _, err := c.SendMedia(ctx, msg.ChatID, "", u); err != nil {
				c.logger.Error("wechat media send failed", "chat", msg.ChatID, "url", u, "err", err)
			}
		}
	})

	c.logger.Info("wechat channel ready", "webhook", webhookPath)
	return nil
}

func (c *Channel) Stop() error { return nil }

func (c *Channel) Send(ctx context.Context, chatID string, content string) error {
	_, err := c.SendText(ctx, chatID, content)
	return err
}
