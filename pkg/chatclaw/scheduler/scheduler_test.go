package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

// memStorage is an in-memory Storage for tests.
type memStorage struct {
	mu    sync.Mutex
	items map[string]*Reminder
}

func newMemStorage() *memStorage {
	return &memStorage{items: make(map[string]*Reminder)}
}

func (m *memStorage) Save(r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.items[r.ID] = &cp
	return nil
}

func (m *memStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memStorage) LoadAll() ([]*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reminder
	for _, r := range m.items {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func TestAddRemoveList(t *testing.T) {
	storage := newMemStorage()
	s := New(storage, nil, nil)

	r := &Reminder{Schedule: "0 9 * * *", Message: "standup", Channel: "telegram", ChatID: "1"}
	if err := s.Add(r); err != nil {
		t.Fatal(err)
	}
	if r.ID == "" {
		t.Fatal("an id must be generated")
	}
	if r.Type != "cron" {
		t.Errorf("missing type must default to cron, got %q", r.Type)
	}
	if _, ok := storage.items[r.ID]; !ok {
		t.Error("reminder must be persisted on add")
	}

	if err := s.Add(&Reminder{ID: r.ID, Schedule: "* * * * *", Message: "dup", ChatID: "1"}); err == nil {
		t.Error("duplicate id must be rejected")
	}

	other := &Reminder{Schedule: "30m", Type: "every", Message: "tea", Channel: "telegram", ChatID: "2"}
	if err := s.Add(other); err != nil {
		t.Fatal(err)
	}

	if got := s.ListForChat("1"); len(got) != 1 || got[0].ID != r.ID {
		t.Errorf("ListForChat(1) = %+v", got)
	}
	if got := s.List(); len(got) != 2 {
		t.Errorf("List() returned %d reminders", len(got))
	}

	if err := s.Remove(r.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := storage.items[r.ID]; ok {
		t.Error("removal must reach storage")
	}
	if err := s.Remove("nope"); err == nil {
		t.Error("removing an unknown id must fail")
	}
}

func TestAddValidation(t *testing.T) {
	s := New(nil, nil, nil)

	if err := s.Add(&Reminder{Message: "no schedule"}); err == nil {
		t.Error("missing schedule must be rejected")
	}
	if err := s.Add(&Reminder{Schedule: "5m"}); err == nil {
		t.Error("missing message must be rejected")
	}
}

func TestStartRejectsInvalidCron(t *testing.T) {
	s := New(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	err := s.Add(&Reminder{Schedule: "not a cron spec", Message: "x", ChatID: "1"})
	if err == nil {
		t.Error("invalid cron spec must be rejected once the runner is up")
	}
}

func TestLoadRestoresPersisted(t *testing.T) {
	storage := newMemStorage()
	first := New(storage, nil, nil)
	if err := first.Add(&Reminder{Schedule: "0 9 * * *", Message: "carry over", ChatID: "9"}); err != nil {
		t.Fatal(err)
	}

	second := New(storage, nil, nil)
	if err := second.Load(); err != nil {
		t.Fatal(err)
	}
	if got := second.ListForChat("9"); len(got) != 1 || got[0].Message != "carry over" {
		t.Errorf("persisted reminder not restored: %+v", got)
	}
}

func TestOneShotDelivery(t *testing.T) {
	delivered := make(chan string, 1)
	storage := newMemStorage()
	s := New(storage, func(channel, chatID, message string) error {
		delivered <- message
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	r := &Reminder{Schedule: "10ms", Type: "at", Message: "ping", Channel: "cli", ChatID: "1"}
	if err := s.Add(r); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-delivered:
		if msg != "⏰ ping" {
			t.Errorf("unexpected message %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot reminder never fired")
	}

	// One-shots remove themselves after firing.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(s.List()) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("fired one-shot must be removed")
}

func TestParseOneShotTime(t *testing.T) {
	t.Run("duration", func(t *testing.T) {
		got, err := ParseOneShotTime("90m")
		if err != nil {
			t.Fatal(err)
		}
		want := time.Now().Add(90 * time.Minute)
		if got.Sub(want) > time.Second || want.Sub(got) > time.Second {
			t.Errorf("duration target off: %v", got)
		}
	})

	t.Run("rfc3339", func(t *testing.T) {
		got, err := ParseOneShotTime("2026-09-01T09:00:00Z")
		if err != nil {
			t.Fatal(err)
		}
		if got.UTC().Hour() != 9 {
			t.Errorf("unexpected time %v", got)
		}
	})

	t.Run("date and time", func(t *testing.T) {
		if _, err := ParseOneShotTime("2026-09-01 09:00"); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("clock rolls to tomorrow", func(t *testing.T) {
		got, err := ParseOneShotTime("00:00")
		if err != nil {
			t.Fatal(err)
		}
		if !got.After(time.Now()) {
			t.Errorf("past clock time must roll forward, got %v", got)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := ParseOneShotTime("whenever"); err == nil {
			t.Error("expected an error")
		}
	})
}
