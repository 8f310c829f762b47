package approval

import (
	"errors"
	"sync"
	"testing"
)

func TestResolveApprove(t *testing.T) {
	m := NewManager(nil)
	pc := m.Create("s1", "chat1", "rm -rf build", "/workspace/123", "recursive delete")

	done := make(chan bool, 1)
	go func() {
		approved, err := m.Wait(pc)
		if err != nil {
			t.Errorf("Wait: %v", err)
		}
		done <- approved
	}()

	resolved, err := m.Resolve(pc.ID, "s1", true, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.Command != "rm -rf build" {
		t.Errorf("resolved wrong command: %q", resolved.Command)
	}
	if approved := <-done; !approved {
		t.Error("expected approval to reach the waiter")
	}
}

func TestResolveDeny(t *testing.T) {
	m := NewManager(nil)
	pc := m.Create("s1", "chat1", "chown -R root /workspace/123", "/workspace/123", "ownership change")

	go func() {
		m.Resolve(pc.ID, "s1", false, "no")
	}()

	approved, err := m.Wait(pc)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if approved {
		t.Error("expected denial")
	}
}

func TestResolveIsAtMostOnce(t *testing.T) {
	m := NewManager(nil)
	pc := m.Create("s1", "chat1", "rm -rf build", "/workspace/123", "recursive delete")

	if _, err := m.Resolve(pc.ID, "s1", true, ""); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := m.Resolve(pc.ID, "s1", true, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second resolve: want ErrNotFound, got %v", err)
	}
}

func TestResolveUnknownID(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.Resolve("nope", "s1", true, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestResolveWrongSessionRefused(t *testing.T) {
	m := NewManager(nil)
	pc := m.Create("s1", "chat1", "rm -rf build", "/workspace/123", "recursive delete")

	if _, err := m.Resolve(pc.ID, "s2", true, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("want ErrNotAuthorized, got %v", err)
	}

	// The refused attempt must not consume the entry.
	if got := m.LatestForSession("s1"); got != pc.ID {
		t.Fatal("entry must stay pending after a refused resolve")
	}
	if _, err := m.Resolve(pc.ID, "s1", false, "no"); err != nil {
		t.Fatalf("owner resolve after refusal: %v", err)
	}
}

func TestListForSessionIsScoped(t *testing.T) {
	m := NewManager(nil)
	a := m.Create("s1", "chat1", "cmd-a", "/workspace/123", "r")
	m.Create("s2", "chat2", "cmd-b", "/workspace/456", "r")
	b := m.Create("s1", "chat1", "cmd-c", "/workspace/123", "r")

	list := m.ListForSession("s1")
	if len(list) != 2 {
		t.Fatalf("expected 2 entries for s1, got %d", len(list))
	}
	if list[0].ID != a.ID || list[1].ID != b.ID {
		t.Error("expected oldest-first ordering of own entries")
	}

	if got := m.LatestForSession("s1"); got != b.ID {
		t.Errorf("LatestForSession = %q, want %q", got, b.ID)
	}
	if got := m.LatestForSession("s3"); got != "" {
		t.Errorf("expected empty for unknown session, got %q", got)
	}
}

func TestConcurrentResolve(t *testing.T) {
	m := NewManager(nil)
	pc := m.Create("s1", "chat1", "rm -rf build", "/workspace/123", "recursive delete")

	var wg sync.WaitGroup
	successes := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Resolve(pc.ID, "s1", true, ""); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one successful resolve, got %d", count)
	}
}
