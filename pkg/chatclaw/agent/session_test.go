package agent

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
)

func TestSessionID(t *testing.T) {
	if got := SessionID("telegram", "123"); got != "telegram:123" {
		t.Errorf("SessionID = %q", got)
	}
	if got := channelFromSession("telegram:123"); got != "telegram" {
		t.Errorf("channelFromSession = %q", got)
	}
}

func TestSessionWindowTrim(t *testing.T) {
	s := &Session{ID: "t:1"}

	s.Append(Message{Role: "user", Content: "start"})
	for i := 0; i < 40; i++ {
		s.Append(
			Message{Role: "assistant", ToolCalls: []ToolCall{{ID: fmt.Sprintf("c%d", i)}}},
			Message{Role: "tool", ToolCallID: fmt.Sprintf("c%d", i), Content: "ok"},
		)
	}

	history := s.Snapshot()
	if len(history) > maxHistoryMessages {
		t.Fatalf("window not trimmed: %d messages", len(history))
	}
	// The window must never open with a tool result whose assistant turn
	// was trimmed away.
	if history[0].Role == "tool" {
		t.Error("window starts with an orphaned tool message")
	}
}

func TestSessionSnapshotIsACopy(t *testing.T) {
	s := &Session{ID: "t:1"}
	s.Append(Message{Role: "user", Content: "original"})

	snap := s.Snapshot()
	snap[0].Content = "mutated"

	if s.Snapshot()[0].Content != "original" {
		t.Error("snapshot mutation leaked into the session")
	}
}

func TestSessionStoreRestore(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "test.db")
	store, err := database.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ss := NewSessionStore(store, time.Hour, nil)
	s := ss.Get("telegram", "77")
	s.Append(
		Message{Role: "user", Content: "remember me"},
		Message{Role: "assistant", Content: "noted"},
	)
	ss.Persist(s)

	// A fresh store simulates a restart.
	ss2 := NewSessionStore(store, time.Hour, nil)
	restored := ss2.Get("telegram", "77")
	history := restored.Snapshot()
	if len(history) != 2 || history[0].Content != "remember me" {
		t.Fatalf("history not restored: %+v", history)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	ss := NewSessionStore(nil, 50*time.Millisecond, nil)

	s := ss.Get("cli", "local")
	s.Append(Message{Role: "user", Content: "old"})

	time.Sleep(80 * time.Millisecond)

	fresh := ss.Get("cli", "local")
	if len(fresh.Snapshot()) != 0 {
		t.Error("expired session must start fresh")
	}
}
