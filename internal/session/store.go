package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"wxgate/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.SessionStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_key     TEXT PRIMARY KEY,
		channel         TEXT NOT NULL,
		account_id      TEXT,
		sender          TEXT,
		last_inbound_ms INTEGER DEFAULT 0,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_channel ON sessions(channel, updated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Touch upserts the session row and records the latest inbound timestamp.
func (s *SQLiteStore) Touch(ctx context.Context, sessionKey string, meta domain.SessionMeta) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, channel, account_id, sender, last_inbound_ms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_key) DO UPDATE SET
		   channel = excluded.channel,
		   account_id = excluded.account_id,
		   sender = excluded.sender,
		   last_inbound_ms = excluded.last_inbound_ms,
		   updated_at = excluded.updated_at`,
		sessionKey, meta.Channel, meta.AccountID, meta.Sender, meta.LastInboundMs, now, now,
	)
	return err
}

// LastInbound returns the previously recorded inbound timestamp in
// milliseconds, or 0 when the session has never been seen.
func (s *SQLiteStore) LastInbound(ctx context.Context, sessionKey string) (int64, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_inbound_ms FROM sessions WHERE session_key = ?`, sessionKey,
	).Scan(&ms)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ms, nil
}

// List returns the most recently active sessions.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_key, channel, account_id, sender, last_inbound_ms, updated_at
		 FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var accountID, sender sql.NullString
		if err := rows.Scan(&r.SessionKey, &r.Channel, &accountID, &sender, &r.LastInboundMs, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.AccountID = accountID.String
		r.Sender = sender.String
		records = append(records, r)
	}
	return records, rows.Err()
}

// Record is one persisted session row.
type Record struct {
	SessionKey    string
	Channel       string
	AccountID     string
	Sender        string
	LastInboundMs int64
	UpdatedAt     time.Time
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
