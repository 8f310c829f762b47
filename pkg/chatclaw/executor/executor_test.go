//go:build !windows

package executor

import (
	"context"
	"strings"
	"testing"
	"time"
)

func testExecutor(t *testing.T, mutate func(*Config)) *Executor {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg, nil)
}

func TestRunForeground(t *testing.T) {
	e := testExecutor(t, nil)
	dir := t.TempDir()

	t.Run("success captures output", func(t *testing.T) {
		res := e.Run(context.Background(), "echo hello", dir)
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
		if strings.TrimSpace(res.Output) != "hello" {
			t.Errorf("output = %q", res.Output)
		}
	})

	t.Run("non-zero exit is a structured failure", func(t *testing.T) {
		res := e.Run(context.Background(), "exit 3", dir)
		if res.Success {
			t.Fatal("expected failure")
		}
		if res.ExitCode != 3 {
			t.Errorf("exit code = %d, want 3", res.ExitCode)
		}
		if res.Error == "" {
			t.Error("failure must carry an error string")
		}
	})

	t.Run("stderr is captured", func(t *testing.T) {
		res := e.Run(context.Background(), "echo oops 1>&2; exit 1", dir)
		if !strings.Contains(res.Output, "oops") {
			t.Errorf("stderr missing from output: %q", res.Output)
		}
	})

	t.Run("runs in the given cwd", func(t *testing.T) {
		res := e.Run(context.Background(), "pwd", dir)
		if !strings.Contains(res.Output, dir) {
			t.Errorf("pwd = %q, want prefix %q", res.Output, dir)
		}
	})
}

func TestRunTimeout(t *testing.T) {
	e := testExecutor(t, func(c *Config) { c.Timeout = 300 * time.Millisecond })
	dir := t.TempDir()

	start := time.Now()
	res := e.Run(context.Background(), "sleep 5", dir)
	elapsed := time.Since(start)

	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !res.TimedOut {
		t.Error("expected TimedOut flag")
	}
	if elapsed > 3*time.Second {
		t.Errorf("timeout took %s, should be near the 300ms limit", elapsed)
	}
}

func TestRunOutputCap(t *testing.T) {
	e := testExecutor(t, func(c *Config) { c.MaxOutputBytes = 1024 })
	dir := t.TempDir()

	res := e.Run(context.Background(), "yes x | head -c 100000", dir)
	if !res.Truncated {
		t.Error("expected Truncated flag")
	}
	if len(res.Output) > 2048 {
		t.Errorf("output not capped: %d bytes", len(res.Output))
	}
}

func TestRunBackground(t *testing.T) {
	e := testExecutor(t, func(c *Config) { c.BackgroundGrace = 300 * time.Millisecond })
	dir := t.TempDir()

	t.Run("long process reports started", func(t *testing.T) {
		res := e.Run(context.Background(), "sleep 10 &", dir)
		if !res.Success || !res.Background {
			t.Fatalf("expected background start, got %+v", res)
		}
		if res.PID == 0 {
			t.Error("expected a pid for the detached process")
		}
	})

	t.Run("immediate crash is reported", func(t *testing.T) {
		res := e.Run(context.Background(), "exit 7 &", dir)
		if res.Success {
			t.Fatalf("expected immediate-crash failure, got %+v", res)
		}
		if !res.Background {
			t.Error("expected Background flag")
		}
	})

	t.Run("double ampersand is not backgrounding", func(t *testing.T) {
		res := e.Run(context.Background(), "true && echo chained", dir)
		if res.Background {
			t.Error("&& must run in the foreground")
		}
		if !strings.Contains(res.Output, "chained") {
			t.Errorf("output = %q", res.Output)
		}
	})
}
