// Package agent – session.go manages per-chat conversation sessions:
// in-memory history with TTL expiry, backed by SQLite so conversations
// survive restarts.
package agent

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
)

const (
	// DefaultSessionTTL is how long an idle session keeps its history.
	DefaultSessionTTL = 4 * time.Hour

	// maxHistoryMessages bounds the conversation window sent to the LLM.
	maxHistoryMessages = 60
)

// SessionID builds the canonical session id from channel and chat.
func SessionID(channel, chatID string) string {
	return channel + ":" + chatID
}

// channelFromSession extracts the channel component of a session id.
func channelFromSession(sessionID string) string {
	if i := strings.Index(sessionID, ":"); i > 0 {
		return sessionID[:i]
	}
	return sessionID
}

// Session is one chat's conversation state.
type Session struct {
	ID         string
	ChatID     string
	Channel    string
	History    []Message
	LastActive time.Time
	mu         sync.Mutex
}

// Append adds messages to the session history, trimming the window
// from the front when it grows past the limit. Tool messages at the
// cut point are dropped together with their assistant turn so the
// window never starts with an orphaned tool result.
func (s *Session) Append(msgs ...Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.History = append(s.History, msgs...)
	s.LastActive = time.Now()

	if len(s.History) <= maxHistoryMessages {
		return
	}
	cut := len(s.History) - maxHistoryMessages
	for cut < len(s.History) && s.History[cut].Role == "tool" {
		cut++
	}
	s.History = s.History[cut:]
}

// Snapshot returns a copy of the history for an LLM request.
func (s *Session) Snapshot() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.History))
	copy(out, s.History)
	return out
}

// Clear drops the conversation history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.History = nil
	s.LastActive = time.Now()
}

// SessionStore hands out sessions keyed by id, restoring them from the
// database on first access and expiring idle ones.
type SessionStore struct {
	sessions map[string]*Session
	ttl      time.Duration
	store    *database.Store
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewSessionStore creates a session store. The database store may be
// nil for ephemeral (test/CLI) use.
func NewSessionStore(store *database.Store, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		store:    store,
		logger:   logger.With("component", "sessions"),
	}
}

// Get returns the session for a channel/chat pair, creating or
// restoring it as needed. Idle sessions past the TTL start fresh.
func (ss *SessionStore) Get(channel, chatID string) *Session {
	id := SessionID(channel, chatID)

	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.sweepLocked()

	if s, ok := ss.sessions[id]; ok {
		return s
	}

	s := &Session{ID: id, ChatID: chatID, Channel: channel, LastActive: time.Now()}

	if ss.store != nil {
		rec, err := ss.store.LoadSession(id)
		switch {
		case err == nil:
			if time.Since(rec.UpdatedAt) < ss.ttl {
				if err := json.Unmarshal(rec.History, &s.History); err != nil {
					ss.logger.Warn("discarding corrupt session history", "id", id, "error", err)
					s.History = nil
				}
			}
		case errors.Is(err, sql.ErrNoRows):
			// First contact from this chat.
		default:
			ss.logger.Warn("session restore failed", "id", id, "error", err)
		}
	}

	ss.sessions[id] = s
	return s
}

// Persist writes a session's history to the database.
func (ss *SessionStore) Persist(s *Session) {
	if ss.store == nil {
		return
	}
	history, err := json.Marshal(s.Snapshot())
	if err != nil {
		ss.logger.Error("encoding session history", "id", s.ID, "error", err)
		return
	}
	err = ss.store.SaveSession(database.SessionRecord{
		ID:      s.ID,
		ChatID:  s.ChatID,
		Channel: s.Channel,
		History: history,
	})
	if err != nil {
		ss.logger.Error("persisting session", "id", s.ID, "error", err)
	}
}

// sweepLocked drops idle in-memory sessions. Callers hold mu.
func (ss *SessionStore) sweepLocked() {
	cutoff := time.Now().Add(-ss.ttl)
	for id, s := range ss.sessions {
		if s.LastActive.Before(cutoff) {
			delete(ss.sessions, id)
		}
	}
}
