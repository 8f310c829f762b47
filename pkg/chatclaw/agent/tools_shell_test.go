package agent

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/approval"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/executor"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/sanitize"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

// testAssistant builds an assistant over a fresh workspace collection.
// No LLM and no database: the tool handlers are exercised directly.
func testAssistant(t *testing.T) (*Assistant, Invocation) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ws := workspace.NewPolicy(t.TempDir(), logger)

	a := NewAssistant(Options{
		Workspace: ws,
		Executor:  executor.DefaultConfig(),
		Sanitizer: sanitize.DefaultConfig(),
	}, logger)

	root, err := ws.RootFor("42")
	if err != nil {
		t.Fatal(err)
	}
	inv := Invocation{
		SessionID:     "test:42",
		ChatID:        "42",
		ChatType:      guard.ChatPrivate,
		WorkspaceRoot: root,
		WorkingDir:    root,
	}
	return a, inv
}

func invCtx(inv Invocation) context.Context {
	return ContextWithInvocation(context.Background(), inv)
}

func TestRunCommandBlocked(t *testing.T) {
	a, inv := testAssistant(t)

	_, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": "cat /etc/shadow"})
	if err == nil {
		t.Fatal("expected an error for a blocked command")
	}
	if !IsBlockedError(err) {
		t.Fatalf("expected a blocked error, got %v", err)
	}
	if !strings.Contains(err.Error(), "BLOCKED") {
		t.Errorf("error should carry the BLOCKED marker, got %q", err.Error())
	}
}

func TestRunCommandAllowed(t *testing.T) {
	a, inv := testAssistant(t)

	out, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": "echo hello"})
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	if m["success"] != true {
		t.Fatalf("expected success, got %+v", m)
	}
	if !strings.Contains(m["output"].(string), "hello") {
		t.Errorf("expected command output, got %+v", m)
	}
}

func TestRunCommandDangerousDenied(t *testing.T) {
	a, inv := testAssistant(t)

	done := make(chan error, 1)
	go func() {
		_, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": "rm -rf ./scratch"})
		done <- err
	}()

	id := waitForApproval(t, a, inv.SessionID)
	if err := a.ResolveApproval(id, inv.SessionID, false, "test deny"); err != nil {
		t.Fatal(err)
	}

	err := <-done
	if !errors.Is(err, ErrApprovalDenied) {
		t.Fatalf("expected ErrApprovalDenied, got %v", err)
	}
	// A denial is the user's decision, not a policy block: it must not
	// count toward the blocked streak.
	if IsBlockedError(err) {
		t.Error("a denied approval must not be a blocked error")
	}
}

func TestRunCommandDangerousApproved(t *testing.T) {
	a, inv := testAssistant(t)

	scratch := filepath.Join(inv.WorkspaceRoot, "scratch")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct {
		out any
		err error
	}, 1)
	go func() {
		out, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": "rm -rf ./scratch"})
		done <- struct {
			out any
			err error
		}{out, err}
	}()

	id := waitForApproval(t, a, inv.SessionID)
	if err := a.ResolveApproval(id, inv.SessionID, true, "test approve"); err != nil {
		t.Fatal(err)
	}

	res := <-done
	if res.err != nil {
		t.Fatal(res.err)
	}
	if m := res.out.(map[string]any); m["success"] != true {
		t.Fatalf("expected success after approval, got %+v", m)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Error("approved command should have removed the directory")
	}
}

func TestRunCommandApprovalFromAnotherChatRefused(t *testing.T) {
	a, inv := testAssistant(t)

	done := make(chan error, 1)
	go func() {
		_, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": "rm -rf ./scratch"})
		done <- err
	}()

	id := waitForApproval(t, a, inv.SessionID)

	// Another chat that learned the id must not be able to decide.
	err := a.ResolveApproval(id, "test:99", true, "from elsewhere")
	if !errors.Is(err, approval.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if got := a.Approvals().LatestForSession(inv.SessionID); got != id {
		t.Fatal("refused attempt must leave the request pending")
	}

	if err := a.ResolveApproval(id, inv.SessionID, false, "test deny"); err != nil {
		t.Fatal(err)
	}
	if err := <-done; !errors.Is(err, ErrApprovalDenied) {
		t.Fatalf("expected ErrApprovalDenied, got %v", err)
	}
}

func TestBlockedStreakHardStop(t *testing.T) {
	a, inv := testAssistant(t)

	blocked := ToolResult{Blocked: true}
	ok := ToolResult{}

	// A success in between resets the streak.
	stopped, _ := a.trackBlocked(inv.SessionID, []ToolResult{blocked, ok, blocked, blocked})
	if stopped {
		t.Fatal("an interrupted streak must not stop the turn")
	}

	stopped, notice := a.trackBlocked(inv.SessionID, []ToolResult{blocked})
	if !stopped {
		t.Fatal("reaching the threshold must stop the turn")
	}
	if notice == "" {
		t.Error("a hard stop must carry a user-facing notice")
	}
}

func TestRunCommandDangerousInGroupIsBlocked(t *testing.T) {
	a, inv := testAssistant(t)
	inv.ChatType = guard.ChatGroup

	_, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": "rm -rf ./scratch"})
	if !IsBlockedError(err) {
		t.Fatalf("expected a blocked error in a group chat, got %v", err)
	}
	if list := a.Approvals().ListForSession(inv.SessionID); len(list) != 0 {
		t.Error("no approval must be created for a group chat")
	}
}

func TestRunCommandOutputWithheld(t *testing.T) {
	a, inv := testAssistant(t)

	command := `printf 'HOME=/x\nPATH=/y\nLANG=c\nUSER=me\nSHELL=sh\nAPI_KEY=zz\n'`
	out, err := a.toolRunCommand(invCtx(inv), map[string]any{"command": command})
	if err != nil {
		t.Fatal(err)
	}
	m := out.(map[string]any)
	// The command ran fine; only its output is suppressed. This stays a
	// success so it cannot feed the blocked streak.
	if m["success"] != true {
		t.Fatalf("expected success, got %+v", m)
	}
	if m["output"] != sanitize.BlockedOutputMarker {
		t.Errorf("expected the blocked output marker, got %q", m["output"])
	}
	if m["note"] != "output withheld by the sanitizer" {
		t.Errorf("expected the sanitizer note, got %+v", m)
	}
}

// waitForApproval polls until the pending command shows up.
func waitForApproval(t *testing.T, a *Assistant, sessionID string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if id := a.approvals.LatestForSession(sessionID); id != "" {
			return id
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no approval request appeared")
	return ""
}
