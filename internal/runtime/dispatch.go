package runtime

import (
	"context"
	"strings"
	"time"

	"wxgate/internal/domain"
)

// maxBlockLen bounds a single delivered text block. Long agent replies are
// split on paragraph boundaries so channels never see oversized payloads.
const maxBlockLen = 4000

// ProcessInbound drives the routing, session, envelope and dispatch pipeline
// for one inbound message. deliver is invoked once per buffered reply block;
// onError receives responder failures. Session metadata updates are
// best-effort and only logged.
func (rt *Runtime) ProcessInbound(ctx context.Context, msg domain.InboundMessage, deliver func(domain.ReplyPayload), onError func(error)) {
	start := time.Now()
	defer rt.metrics.DispatchLatency.ObserveSince(start)

	route := rt.ResolveRoute(msg.Channel, msg.AccountID, msg.SenderID)

	nowMs := msg.Timestamp.UnixMilli()
	if msg.Timestamp.IsZero() {
		nowMs = time.Now().UnixMilli()
	}

	prevMs, err := rt.sessions.LastInbound(ctx, route.SessionKey)
	if err != nil {
		rt.logger.Warn("previous timestamp lookup failed", "session", route.SessionKey, "err", err)
		prevMs = 0
	}

	if err := rt.sessions.Touch(ctx, route.SessionKey, domain.SessionMeta{
		Channel:       msg.Channel,
		AccountID:     route.AccountID,
		Sender:        msg.SenderID,
		LastInboundMs: nowMs,
	}); err != nil {
		rt.logger.Warn("session metadata update failed", "session", route.SessionKey, "err", err)
	}

	if rt.responder == nil {
		rt.metrics.DispatchErrors.Inc()
		onError(errNoResponder)
		return
	}

	payloads, err := rt.responder.Respond(ctx, domain.ReplyContext{
		SessionKey:  route.SessionKey,
		AgentID:     route.AgentID,
		Channel:     msg.Channel,
		AccountID:   route.AccountID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		Envelope:    FormatEnvelope(msg.Channel, msg.SenderID, msg.Content, prevMs, nowMs),
		TimestampMs: nowMs,
	})
	if err != nil {
		rt.metrics.DispatchErrors.Inc()
		onError(err)
		return
	}

	for _, p := range payloads {
		deliverBlocks(p, func(out domain.ReplyPayload) {
			rt.metrics.RepliesSent.Inc()
			deliver(out)
		})
	}
}

// deliverBlocks splits a payload's text into blocks and hands them to the
// delivery callback. Media rides on the final block so text always lands
// before attachments.
func deliverBlocks(p domain.ReplyPayload, deliver func(domain.ReplyPayload)) {
	blocks := splitBlocks(p.Text, maxBlockLen)
	if len(blocks) == 0 {
		if len(p.AllMedia()) > 0 {
			deliver(domain.ReplyPayload{MediaURLs: p.MediaURLs, Media: p.Media})
		}
		return
	}

	for i, block := range blocks {
		out := domain.ReplyPayload{Text: block}
		if i == len(blocks)-1 {
			out.MediaURLs = p.MediaURLs
			out.Media = p.Media
		}
		deliver(out)
	}
}

// splitBlocks splits text on blank-line boundaries, packing paragraphs into
// blocks of at most maxLen. Oversized paragraphs are hard-cut at the last
// newline before the limit.
func splitBlocks(text string, maxLen int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var blocks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			blocks = append(blocks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		if para == "" {
			continue
		}

		// Paragraph alone exceeds the limit: flush and hard-cut it.
		for len(para) > maxLen {
			flush()
			cutAt := strings.LastIndex(para[:maxLen], "\n")
			if cutAt < maxLen/2 {
				cutAt = maxLen
			}
			blocks = append(blocks, para[:cutAt])
			para = strings.TrimLeft(para[cutAt:], "\n")
		}
		if para == "" {
			continue
		}

		if current.Len() > 0 && current.Len()+2+len(para) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return blocks
}

// Run consumes the inbound bus and dispatches each message, sending reply
// blocks back out through the bus to the originating channel.
func (rt *Runtime) Run(ctx context.Context) {
	rt.tasks.Start(ctx)

	inbound := rt.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-inbound:
			if !ok {
				return
			}
			rt.tasks.Submit("dispatch-"+msg.Channel, func(taskCtx context.Context) error {
				rt.ProcessInbound(taskCtx, msg,
					func(p domain.ReplyPayload) {
						rt.bus.SendOutbound(domain.OutboundMessage{
							Channel:   msg.Channel,
							ChatID:    msg.ChatID,
							Content:   p.Text,
							MediaURLs: p.AllMedia(),
						})
					},
					func(err error) {
						rt.logger.Error("dispatch failed",
							"channel", msg.Channel,
							"sender", msg.SenderID,
							"err", err,
						)
					},
				)
				return nil
			})
		}
	}
}
