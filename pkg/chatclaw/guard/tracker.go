// Package guard – tracker.go counts consecutive blocked tool attempts
// per session. An LLM that keeps probing the policy engine burns the
// whole turn; after the threshold the calling loop hard-stops it.
package guard

import (
	"log/slog"
	"sync"
)

// DefaultBlockedThreshold is how many consecutive blocked attempts a
// session gets before the turn is stopped.
const DefaultBlockedThreshold = 3

// BlockedTracker tracks consecutive blocked results per session.
// The counter resets on any successful tool call or a new user message.
type BlockedTracker struct {
	threshold int
	counts    map[string]int
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewBlockedTracker creates a tracker with the given threshold.
// A threshold of zero or less falls back to the default.
func NewBlockedTracker(threshold int, logger *slog.Logger) *BlockedTracker {
	if threshold <= 0 {
		threshold = DefaultBlockedThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockedTracker{
		threshold: threshold,
		counts:    make(map[string]int),
		logger:    logger.With("component", "blocked_tracker"),
	}
}

// RecordBlocked increments the session counter and reports whether the
// threshold has been reached.
func (t *BlockedTracker) RecordBlocked(sessionID string) (count int, limitReached bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counts[sessionID]++
	count = t.counts[sessionID]
	if count >= t.threshold {
		t.logger.Warn("blocked attempt threshold reached",
			"session", sessionID,
			"count", count,
		)
		return count, true
	}
	return count, false
}

// Reset clears the counter for a session.
func (t *BlockedTracker) Reset(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, sessionID)
}
