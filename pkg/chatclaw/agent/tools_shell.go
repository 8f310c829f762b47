// Package agent – tools_shell.go registers run_command, the single path
// from the model to a shell. The pipeline is classify, then approve if
// dangerous, then execute, then sanitize. Nothing reaches the executor
// without a decision from the classifier first.
package agent

import (
	"context"
	"fmt"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
)

func (a *Assistant) registerShellTool() {
	a.tools.Register(MakeToolDefinition("run_command",
		"Run a shell command inside your workspace. Commands are risk-checked; dangerous commands require user approval, and some commands are never allowed. Append & to run a long-lived command in the background.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{"type": "string", "description": "The shell command to run"},
			},
			"required": []string{"command"},
		}), a.toolRunCommand)
}

func (a *Assistant) toolRunCommand(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)
	command := getString(args, "command")
	if command == "" {
		return nil, fmt.Errorf("command is required")
	}

	decision := a.classifier.Classify(command, guard.Context{
		ChatType:      inv.ChatType,
		WorkspaceRoot: inv.WorkspaceRoot,
		WorkingDir:    inv.WorkingDir,
	})

	switch {
	case decision.Blocked:
		return nil, BlockedErrorf("command rejected (%s): %s", decision.Rule, decision.Reason)

	case decision.Dangerous:
		approved, err := a.requestApproval(ctx, inv, command, decision)
		if err != nil {
			return nil, err
		}
		if !approved {
			return nil, fmt.Errorf("command not executed: %w", ErrApprovalDenied)
		}
	}

	res := a.exec.Run(ctx, command, inv.WorkingDir)

	clean, sanitizeBlocked := a.sanitizer.Process(res.Output)

	out := map[string]any{
		"success":   res.Success,
		"output":    clean,
		"exit_code": res.ExitCode,
	}
	if res.Error != "" {
		out["error"] = res.Error
	}
	if res.TimedOut {
		out["timed_out"] = true
	}
	if res.Truncated {
		out["note"] = "output truncated at the capture limit"
	}
	if res.Background {
		out["background"] = true
		if res.PID != 0 {
			out["pid"] = res.PID
		}
	}
	if sanitizeBlocked {
		// The command itself ran fine. Only its output was withheld, so
		// this stays a success and does not count toward the blocked
		// streak.
		out["note"] = "output withheld by the sanitizer"
	}
	return out, nil
}

// requestApproval parks the command in the approval store, pushes the
// prompt to the chat, and blocks until a decision or timeout.
func (a *Assistant) requestApproval(ctx context.Context, inv Invocation, command string, decision guard.Decision) (bool, error) {
	pc := a.approvals.Create(inv.SessionID, inv.ChatID, command, inv.WorkingDir, decision.Reason)

	if a.notifier != nil {
		if err := a.notifier.NotifyApproval(ctx, inv.ChatID, pc); err != nil {
			a.logger.Warn("approval prompt delivery failed", "error", err)
		}
	}

	approved, err := a.approvals.Wait(pc)
	if err != nil {
		return false, fmt.Errorf("%v: %w", err, ErrApprovalTimeout)
	}
	return approved, nil
}
