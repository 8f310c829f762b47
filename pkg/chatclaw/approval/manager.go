// Package approval implements the pending-command store: the single
// path through which a dangerous classification becomes executable.
//
// Entries are keyed by opaque uuid ids. Resolve is an atomic
// check-and-remove, so a second resolution of the same id reports
// not-found and execution happens at most once per id.
package approval

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// WaitTimeout is how long a tool call blocks for a decision before
	// giving up. 120s gives ample time to read and respond via chat.
	WaitTimeout = 120 * time.Second

	// PendingTTL is how long an unresolved entry stays in the store
	// before the sweep discards it.
	PendingTTL = 10 * time.Minute
)

// ErrNotFound is returned when an id is unknown or already resolved.
var ErrNotFound = errors.New("pending command not found")

// ErrNotAuthorized is returned when a resolver's session does not own
// the pending command.
var ErrNotAuthorized = errors.New("pending command belongs to another session")

// Outcome is the decision delivered to a waiting tool call.
type Outcome struct {
	Approved bool
	Reason   string
}

// PendingCommand is a dangerous command awaiting an approve/deny
// decision.
type PendingCommand struct {
	ID         string
	SessionID  string
	ChatID     string
	Command    string
	WorkingDir string
	Reason     string
	CreatedAt  time.Time

	result chan Outcome
}

// Manager is the concurrency-safe pending-command store.
type Manager struct {
	pending map[string]*PendingCommand
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewManager creates an empty approval manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pending: make(map[string]*PendingCommand),
		logger:  logger.With("component", "approval"),
	}
}

// Create stores a pending command and returns it. The caller renders
// the approval prompt and then calls Wait for the decision.
func (m *Manager) Create(sessionID, chatID, command, cwd, reason string) *PendingCommand {
	pc := &PendingCommand{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		ChatID:     chatID,
		Command:    command,
		WorkingDir: cwd,
		Reason:     reason,
		CreatedAt:  time.Now(),
		result:     make(chan Outcome, 1),
	}

	m.mu.Lock()
	m.sweepLocked()
	m.pending[pc.ID] = pc
	m.mu.Unlock()

	m.logger.Info("approval created",
		"id", pc.ID,
		"session", sessionID,
		"command", truncateCommand(command),
	)
	return pc
}

// PromptText renders the approval prompt for chats without buttons.
func (pc *PendingCommand) PromptText() string {
	return fmt.Sprintf("⚠️ Approval required: run %q\nReason: %s\n\nReply /approve %s or /deny %s",
		truncateCommand(pc.Command), pc.Reason, pc.ID, pc.ID)
}

// Wait blocks until the command is resolved or the wait times out.
// A timeout removes the entry so a late button press cannot fire it.
func (m *Manager) Wait(pc *PendingCommand) (approved bool, err error) {
	select {
	case out := <-pc.result:
		if out.Approved {
			m.logger.Info("approval granted", "id", pc.ID)
			return true, nil
		}
		m.logger.Info("approval denied", "id", pc.ID, "reason", out.Reason)
		return false, nil

	case <-time.After(WaitTimeout):
		m.mu.Lock()
		delete(m.pending, pc.ID)
		m.mu.Unlock()
		m.logger.Warn("approval timed out", "id", pc.ID)
		return false, fmt.Errorf("approval timed out after %s", WaitTimeout)
	}
}

// Resolve atomically removes the entry and delivers the decision to
// the waiting tool call. Only the owning session may resolve: a
// mismatched sessionID returns ErrNotAuthorized and the entry stays
// pending. The second resolve on the same id returns ErrNotFound with
// no side effect.
func (m *Manager) Resolve(id, sessionID string, approve bool, reason string) (*PendingCommand, error) {
	m.mu.Lock()
	pc, ok := m.pending[id]
	if ok && pc.SessionID != sessionID {
		m.mu.Unlock()
		m.logger.Warn("approval resolve refused",
			"id", id, "owner", pc.SessionID, "resolver", sessionID)
		return nil, ErrNotAuthorized
	}
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}

	// Buffered channel: delivery never blocks, and a racing timeout
	// that already gave up simply never reads it.
	pc.result <- Outcome{Approved: approve, Reason: reason}
	return pc, nil
}

// ListForSession returns the pending commands owned by a session,
// oldest first.
func (m *Manager) ListForSession(sessionID string) []*PendingCommand {
	m.mu.Lock()
	m.sweepLocked()
	var list []*PendingCommand
	for _, pc := range m.pending {
		if pc.SessionID == sessionID {
			list = append(list, pc)
		}
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// LatestForSession returns the id of the most recent pending command
// for a session, or empty. This lets "/approve" without an id resolve
// the latest request.
func (m *Manager) LatestForSession(sessionID string) string {
	var latest *PendingCommand
	for _, pc := range m.ListForSession(sessionID) {
		if latest == nil || pc.CreatedAt.After(latest.CreatedAt) {
			latest = pc
		}
	}
	if latest == nil {
		return ""
	}
	return latest.ID
}

// sweepLocked discards entries older than PendingTTL. Callers hold mu.
func (m *Manager) sweepLocked() {
	cutoff := time.Now().Add(-PendingTTL)
	for id, pc := range m.pending {
		if pc.CreatedAt.Before(cutoff) {
			delete(m.pending, id)
		}
	}
}

func truncateCommand(command string) string {
	command = strings.ReplaceAll(command, "\n", " ")
	if len(command) > 80 {
		return command[:80] + "..."
	}
	return command
}
