//go:build !windows

// Package executor runs vetted shell commands with bounded time and
// bounded output capture.
//
// Foreground commands run under a wall-clock timeout with the whole
// process group killed on expiry. Background commands (trailing &) are
// started detached and watched briefly so the caller gets an immediate
// started-or-crashed verdict instead of waiting.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Executor runs commands within the configured limits.
type Executor struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an executor. Invalid limits fall back to defaults.
func New(cfg Config, logger *slog.Logger) *Executor {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg, logger: logger.With("component", "executor")}
}

// Run executes a command in cwd. A trailing & selects the background
// path; everything else runs in the foreground.
func (e *Executor) Run(ctx context.Context, command, cwd string) Result {
	trimmed := strings.TrimSpace(command)
	if strings.HasSuffix(trimmed, "&") && !strings.HasSuffix(trimmed, "&&") {
		return e.runBackground(strings.TrimSuffix(trimmed, "&"), cwd)
	}
	return e.runForeground(ctx, trimmed, cwd)
}

// runForeground runs a command with timeout and capped capture.
func (e *Executor) runForeground(ctx context.Context, command, cwd string) Result {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.Shell, "-c", command)
	cmd.Dir = cwd

	// Process group so the timeout kills the whole tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}

	stdout := newCappedBuffer(e.cfg.MaxOutputBytes)
	stderr := newCappedBuffer(e.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	res := Result{
		Output:    combineOutput(stdout.String(), stderr.String()),
		Duration:  duration,
		Truncated: stdout.Capped() || stderr.Capped(),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.TimedOut = true
		res.ExitCode = -1
		res.Error = fmt.Sprintf("command timed out after %s", e.cfg.Timeout)
	case err == nil:
		res.Success = true
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			res.Error = fmt.Sprintf("exit status %d", res.ExitCode)
		} else {
			res.ExitCode = -1
			res.Error = err.Error()
		}
	}

	e.logger.Debug("command finished",
		"success", res.Success,
		"exit_code", res.ExitCode,
		"duration", duration,
		"timed_out", res.TimedOut,
	)
	return res
}

// runBackground starts a detached process and checks liveness once
// after a short grace period.
func (e *Executor) runBackground(command, cwd string) Result {
	cmd := exec.Command(e.cfg.Shell, "-c", command)
	cmd.Dir = cwd

	// New session: the detached process outlives the executor.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Result{
			Background: true,
			Error:      fmt.Sprintf("cannot start background command: %v", err),
		}
	}

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	select {
	case err := <-exited:
		// Crashed (or finished) within the grace window.
		if err != nil {
			return Result{
				Background: true,
				Error:      fmt.Sprintf("background command exited immediately: %v", err),
			}
		}
		return Result{
			Success:    true,
			Background: true,
			Output:     "background command finished immediately",
		}

	case <-time.After(e.cfg.BackgroundGrace):
		e.logger.Info("background command started", "pid", cmd.Process.Pid)
		return Result{
			Success:    true,
			Background: true,
			PID:        cmd.Process.Pid,
			Output:     fmt.Sprintf("started in background (pid %d)", cmd.Process.Pid),
		}
	}
}

// combineOutput merges stdout and stderr the way a terminal shows them.
func combineOutput(stdout, stderr string) string {
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}

// cappedBuffer captures up to max bytes and silently drops the rest.
type cappedBuffer struct {
	buf    bytes.Buffer
	max    int64
	capped bool
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		b.capped = true
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.capped = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string { return b.buf.String() }
func (b *cappedBuffer) Capped() bool   { return b.capped }
