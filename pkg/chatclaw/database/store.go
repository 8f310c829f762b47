// Package database provides the SQLite persistence layer: session
// history, reminders, and the approval audit trail.
package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/scheduler"
)

// Config holds SQLite-specific configuration.
type Config struct {
	// Path is the database file location.
	Path string `yaml:"path"`

	// JournalMode defaults to WAL.
	JournalMode string `yaml:"journal_mode"`

	// BusyTimeout in milliseconds, defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout"`
}

// DefaultConfig returns the default database configuration.
func DefaultConfig() Config {
	return Config{
		Path:        "./data/chatclaw.db",
		JournalMode: "WAL",
		BusyTimeout: 5000,
	}
}

// Store wraps the SQLite connection.
type Store struct {
	DB *sql.DB
}

// Open opens or creates the database and applies the schema.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5000
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d&_foreign_keys=ON",
		cfg.Path, cfg.JournalMode, cfg.BusyTimeout)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL,
	channel    TEXT NOT NULL,
	history    TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_chat ON sessions(chat_id);

CREATE TABLE IF NOT EXISTS reminders (
	id      TEXT PRIMARY KEY,
	payload TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS approval_audit (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	chat_id    TEXT NOT NULL,
	command    TEXT NOT NULL,
	decision   TEXT NOT NULL,
	reason     TEXT,
	decided_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_session ON approval_audit(session_id);
`
	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ---------- Sessions ----------

// SessionRecord is a persisted conversation.
type SessionRecord struct {
	ID        string
	ChatID    string
	Channel   string
	History   json.RawMessage
	UpdatedAt time.Time
}

// SaveSession upserts a session record.
func (s *Store) SaveSession(rec SessionRecord) error {
	_, err := s.DB.Exec(`
INSERT INTO sessions (id, chat_id, channel, history, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET history = excluded.history, updated_at = excluded.updated_at`,
		rec.ID, rec.ChatID, rec.Channel, string(rec.History), time.Now())
	if err != nil {
		return fmt.Errorf("save session %q: %w", rec.ID, err)
	}
	return nil
}

// LoadSession returns a session record, or sql.ErrNoRows if absent.
func (s *Store) LoadSession(id string) (SessionRecord, error) {
	var rec SessionRecord
	var history string
	err := s.DB.QueryRow(`
SELECT id, chat_id, channel, history, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &rec.ChatID, &rec.Channel, &history, &rec.UpdatedAt)
	if err != nil {
		return SessionRecord{}, err
	}
	rec.History = json.RawMessage(history)
	return rec, nil
}

// DeleteSession removes a session record.
func (s *Store) DeleteSession(id string) error {
	_, err := s.DB.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// PruneSessions removes sessions not touched since the cutoff and
// returns how many were removed.
func (s *Store) PruneSessions(cutoff time.Time) (int64, error) {
	res, err := s.DB.Exec(`DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// ---------- Reminders ----------

// ReminderStorage adapts the store to the scheduler's persistence
// interface. Reminders are stored as JSON payloads keyed by id.
type ReminderStorage struct {
	store *Store
}

// Reminders returns the scheduler storage adapter.
func (s *Store) Reminders() *ReminderStorage {
	return &ReminderStorage{store: s}
}

// Save persists one reminder.
func (rs *ReminderStorage) Save(r *scheduler.Reminder) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reminder %q: %w", r.ID, err)
	}
	_, err = rs.store.DB.Exec(`
INSERT INTO reminders (id, payload) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET payload = excluded.payload`,
		r.ID, string(payload))
	if err != nil {
		return fmt.Errorf("save reminder %q: %w", r.ID, err)
	}
	return nil
}

// Delete removes one reminder.
func (rs *ReminderStorage) Delete(id string) error {
	_, err := rs.store.DB.Exec(`DELETE FROM reminders WHERE id = ?`, id)
	return err
}

// LoadAll returns every persisted reminder.
func (rs *ReminderStorage) LoadAll() ([]*scheduler.Reminder, error) {
	rows, err := rs.store.DB.Query(`SELECT payload FROM reminders`)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	defer rows.Close()

	var result []*scheduler.Reminder
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r scheduler.Reminder
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			// A corrupt row should not take down startup.
			continue
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

// ---------- Approval audit ----------

// AuditEntry records one approval decision.
type AuditEntry struct {
	RequestID string
	SessionID string
	ChatID    string
	Command   string
	Decision  string
	Reason    string
	DecidedAt time.Time
}

// RecordApproval appends one approval decision to the audit trail.
func (s *Store) RecordApproval(e AuditEntry) error {
	if e.DecidedAt.IsZero() {
		e.DecidedAt = time.Now()
	}
	_, err := s.DB.Exec(`
INSERT INTO approval_audit (request_id, session_id, chat_id, command, decision, reason, decided_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.SessionID, e.ChatID, e.Command, e.Decision, e.Reason, e.DecidedAt)
	if err != nil {
		return fmt.Errorf("record approval: %w", err)
	}
	return nil
}

// RecentApprovals returns the latest audit entries, newest first.
func (s *Store) RecentApprovals(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.Query(`
SELECT request_id, session_id, chat_id, command, decision, COALESCE(reason, ''), decided_at
FROM approval_audit ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var result []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.RequestID, &e.SessionID, &e.ChatID, &e.Command, &e.Decision, &e.Reason, &e.DecidedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
