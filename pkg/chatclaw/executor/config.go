// Package executor – config.go holds the execution limits and the
// shared result shape.
package executor

import (
	"fmt"
	"time"
)

// Result is the uniform outcome shape for both execution paths.
type Result struct {
	Success  bool
	Output   string
	Error    string
	ExitCode int
	Duration time.Duration

	// TimedOut is true when the foreground timeout killed the process.
	TimedOut bool

	// Truncated is true when output capture hit MaxOutputBytes.
	Truncated bool

	// Background is true when the command was started detached.
	Background bool

	// PID is the detached process id for background commands.
	PID int
}

// Config bounds command execution.
type Config struct {
	// Timeout is the wall-clock limit for foreground commands.
	// Defaults to 60s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxOutputBytes caps combined stdout+stderr capture.
	// Defaults to 1MB.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// BackgroundGrace is how long a detached process is watched after
	// start to distinguish "started" from "crashed immediately".
	// Defaults to 1.5s.
	BackgroundGrace time.Duration `yaml:"background_grace"`

	// Shell is the shell binary used to run commands.
	// Defaults to /bin/sh.
	Shell string `yaml:"shell"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         60 * time.Second,
		MaxOutputBytes:  1 * 1024 * 1024,
		BackgroundGrace: 1500 * time.Millisecond,
		Shell:           "/bin/sh",
	}
}

// Validate checks that the config is usable.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxOutputBytes <= 0 {
		return fmt.Errorf("max_output_bytes must be positive")
	}
	if c.Shell == "" {
		return fmt.Errorf("shell must be set")
	}
	return nil
}
