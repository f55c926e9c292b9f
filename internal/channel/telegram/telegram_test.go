package telegram

import (
	"log/slog"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestSplitMessage_Short(t *testing.T) {
	chunks := splitMessage("hello", 4000)
	if len(chunks) != 1 || chunks[0] != "hello" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessage_Empty(t *testing.T) {
	chunks := splitMessage("", 4000)
	if len(chunks) != 1 || chunks[0] != "" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestSplitMessage_PrefersNewline(t *testing.T) {
	text := strings.Repeat("a", 30) + "\n" + strings.Repeat("b", 30)
	chunks := splitMessage(text, 40)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != strings.Repeat("a", 30) {
		t.Errorf("first chunk should end at the newline, got %q", chunks[0])
	}
}

func TestSplitMessage_HardCutWithoutNewline(t *testing.T) {
	text := strings.Repeat("x", 100)
	chunks := splitMessage(text, 40)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 40 {
			t.Errorf("chunk %d exceeds max length: %d", i, len(c))
		}
	}
	if joined := strings.Join(chunks, ""); joined != text {
		t.Error("chunks should reassemble to the original text")
	}
}

func TestSplitMessage_IgnoresEarlyNewline(t *testing.T) {
	// A newline in the front half is a worse cut than a hard cut at maxLen.
	text := "ab\n" + strings.Repeat("c", 60)
	chunks := splitMessage(text, 40)
	if len(chunks[0]) != 40 {
		t.Errorf("expected a hard cut at 40, got chunk of %d", len(chunks[0]))
	}
}

func TestIsAllowed(t *testing.T) {
	open := New(Config{Token: "t", Logger: testLogger()})
	if !open.isAllowed(12345) {
		t.Error("empty allow list should allow everyone")
	}

	restricted := New(Config{Token: "t", AllowFrom: []string{"100", " 200 ", "junk"}, Logger: testLogger()})
	if !restricted.isAllowed(100) || !restricted.isAllowed(200) {
		t.Error("listed IDs should be allowed")
	}
	if restricted.isAllowed(300) {
		t.Error("unlisted ID should be rejected")
	}
	if len(restricted.allowFrom) != 2 {
		t.Errorf("unparseable entries should be skipped, got %v", restricted.allowFrom)
	}
}

func TestNew_DefaultParseMode(t *testing.T) {
	c := New(Config{Token: "t", Logger: testLogger()})
	if c.parseMode != "Markdown" {
		t.Errorf("expected default parse mode Markdown, got %q", c.parseMode)
	}
}
