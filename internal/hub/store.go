// Package hub implements the durable core of crosstalk: session
// registration, direct and broadcast messaging with a per-target
// delivery queue, conversation threading, and the shared-context store.
//
// All durable state lives in a single SQLite database. The database is
// shared between independent AI CLI processes (one crosstalk server per
// session), so the store is the single source of truth and every
// multi-write operation runs inside one transaction.
package hub

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Typed not-found results. Absence is an expected outcome for a
// discovery-oriented system, so callers match on these instead of
// inspecting sql.ErrNoRows.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrContextNotFound  = errors.New("shared context not found")
	ErrNoActiveSession  = errors.New("no active session for platform")
	ErrMessageNotFound  = errors.New("message not found")
	ErrQueueRowNotFound = errors.New("delivery queue row not found")
)

// Config holds store configuration.
type Config struct {
	DataDir                  string
	PreviewLength            int
	DefaultCheckLimit        int
	DefaultConversationLimit int
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:                  filepath.Join(home, ".crosstalk"),
		PreviewLength:            100,
		DefaultCheckLimit:        20,
		DefaultConversationLimit: 50,
	}
}

// Store is the durable hub backed by SQLite.
//
// The index map is a process-local cache over the sessions table, keyed
// by session_id. It is derived state: safe to discard and rebuild from
// the database at any time, and never consulted as authoritative.
type Store struct {
	db  *sql.DB
	cfg Config

	mu    sync.RWMutex
	index map[string]Session
}

// Open creates the data directory if needed, opens the SQLite database
// with WAL mode, and runs migrations.
func Open(cfg Config) (*Store, error) {
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = 100
	}
	if cfg.DefaultCheckLimit <= 0 {
		cfg.DefaultCheckLimit = 20
	}
	if cfg.DefaultConversationLimit <= 0 {
		cfg.DefaultConversationLimit = 50
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("hub: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "chat.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("hub: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("hub: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg, index: make(map[string]Session)}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("hub: migration: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id    TEXT PRIMARY KEY,
			platform      TEXT NOT NULL,
			display_name  TEXT,
			node_id       TEXT,
			registered_at TEXT NOT NULL DEFAULT (datetime('now')),
			last_active   TEXT NOT NULL DEFAULT (datetime('now')),
			metadata      TEXT,
			active        INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			title           TEXT,
			participants    TEXT NOT NULL,
			created_at      TEXT NOT NULL DEFAULT (datetime('now')),
			last_activity   TEXT NOT NULL DEFAULT (datetime('now')),
			metadata        TEXT,
			active          INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS messages (
			message_id      TEXT PRIMARY KEY,
			conversation_id TEXT,
			from_session    TEXT NOT NULL,
			to_session      TEXT,
			broadcast       INTEGER NOT NULL DEFAULT 0,
			content         TEXT NOT NULL,
			message_type    TEXT NOT NULL DEFAULT 'chat',
			timestamp       TEXT NOT NULL DEFAULT (datetime('now')),
			delivered       INTEGER NOT NULL DEFAULT 0,
			delivered_at    TEXT,
			read            INTEGER NOT NULL DEFAULT 0,
			read_at         TEXT,
			metadata        TEXT,
			FOREIGN KEY (from_session) REFERENCES sessions(session_id)
		);

		CREATE TABLE IF NOT EXISTS message_queue (
			queue_id       INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id     TEXT NOT NULL,
			target_session TEXT NOT NULL,
			queued_at      TEXT NOT NULL DEFAULT (datetime('now')),
			attempts       INTEGER NOT NULL DEFAULT 0,
			last_attempt   TEXT,
			status         TEXT NOT NULL DEFAULT 'pending',
			FOREIGN KEY (message_id) REFERENCES messages(message_id)
		);

		CREATE TABLE IF NOT EXISTS shared_context (
			context_id   TEXT PRIMARY KEY,
			context_key  TEXT UNIQUE NOT NULL,
			content      TEXT NOT NULL,
			created_by   TEXT,
			created_at   TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at   TEXT NOT NULL DEFAULT (datetime('now')),
			access_count INTEGER NOT NULL DEFAULT 0,
			metadata     TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
		CREATE INDEX IF NOT EXISTS idx_messages_to_session   ON messages(to_session);
		CREATE INDEX IF NOT EXISTS idx_messages_timestamp    ON messages(timestamp);
		CREATE INDEX IF NOT EXISTS idx_queue_status          ON message_queue(status);
		CREATE INDEX IF NOT EXISTS idx_queue_target          ON message_queue(target_session, status);
		CREATE INDEX IF NOT EXISTS idx_sessions_platform     ON sessions(platform, active);
		CREATE INDEX IF NOT EXISTS idx_context_updated       ON shared_context(updated_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	// The unique partial index is what makes conversation-lookup-or-create
	// safe across processes: two first-time senders both INSERT OR IGNORE,
	// exactly one row wins, both re-select the same conversation_id.
	_, err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_conversations_participants
		ON conversations(participants) WHERE active = 1;
	`)
	return err
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// Truncate shortens a string to max length with ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}

// isUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
