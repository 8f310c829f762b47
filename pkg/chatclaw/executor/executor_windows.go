//go:build windows

package executor

import (
	"context"
	"errors"
	"log/slog"
)

var ErrWindowsNotSupported = errors.New("command execution is not supported on Windows natively yet")

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

// Run reports that execution is unavailable on this platform.
func (e *Executor) Run(ctx context.Context, command, cwd string) Result {
	return Result{
		ExitCode: -1,
		Error:    ErrWindowsNotSupported.Error(),
	}
}
