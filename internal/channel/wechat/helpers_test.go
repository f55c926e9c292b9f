package wechat

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"wxgate/internal/bus"
	"wxgate/internal/config"
	"wxgate/internal/responder"
	"wxgate/internal/runtime"
	"wxgate/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// newTestChannel builds a channel against a runtime with a temp session
// store, an echo responder and a started task runner.
func newTestChannel(t *testing.T, mutate func(*config.Config)) *Channel {
	t.Helper()

	cfg := config.Defaults()
	cfg.Session.DBPath = filepath.Join(t.TempDir(), "sessions.db")
	if mutate != nil {
		mutate(cfg)
	}

	logger := testLogger()

	store, err := session.NewSQLiteStore(cfg.Session.DBPath, logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	messageBus := bus.New(8, logger)
	t.Cleanup(messageBus.Close)

	rt, err := runtime.New(runtime.Options{
		Config:    cfg,
		Logger:    logger,
		Bus:       messageBus,
		Sessions:  store,
		Responder: responder.NewEcho(),
	})
	if err != nil {
		t.Fatal(err)
	}
	rt.Tasks().Start(context.Background())
	t.Cleanup(rt.Tasks().Close)

	ch, err := New(rt)
	if err != nil {
		t.Fatal(err)
	}
	return ch
}
