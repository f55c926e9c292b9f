package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"wxgate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "wechat", SenderID: "Alice", Content: "hi"})

	select {
	case msg := <-b.Subscribe():
		if msg.SenderID != "Alice" || msg.Content != "hi" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestOutboundHandler(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("wechat", func(msg domain.OutboundMessage) {
		got <- msg
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "wechat", ChatID: "Alice", Content: "reply"})

	select {
	case msg := <-got:
		if msg.ChatID != "Alice" {
			t.Errorf("unexpected outbound: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler not invoked")
	}
}

func TestSendOutbound_NoHandler(t *testing.T) {
	b := New(4, testLogger())
	defer b.Close()

	// Must not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "nobody", Content: "x"})
}

func TestPublishAfterClose(t *testing.T) {
	b := New(4, testLogger())
	b.Close()

	// Must not panic.
	b.Publish(domain.InboundMessage{Channel: "wechat", Content: "late"})
}

func TestCloseTwice(t *testing.T) {
	b := New(4, testLogger())
	b.Close()
	b.Close()
}
