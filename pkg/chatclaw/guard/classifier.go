// Package guard implements the command risk classifier.
//
// Every shell command from a tool call is classified exactly once into
// allowed, dangerous (requires approval), or blocked (never allowed).
// Three cooperating passes run in order: workspace isolation, server
// execution, then the denylist/approval pattern tables. Group chats
// have no reliable human-in-the-loop channel, so anything dangerous
// there becomes blocked.
package guard

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

// ChatType identifies the kind of chat a command originated from.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// IsGroupLike reports whether the chat has multiple participants and
// therefore no trustworthy approval channel.
func (t ChatType) IsGroupLike() bool {
	return t == ChatGroup || t == ChatSupergroup || t == ChatChannel
}

// Decision is the outcome of classifying one command.
// Blocked is terminal. Dangerous requires approval before execution.
type Decision struct {
	Blocked   bool
	Dangerous bool
	Rule      string
	Reason    string
}

// Context carries the invocation context a classification needs.
type Context struct {
	ChatType      ChatType
	WorkspaceRoot string
	WorkingDir    string
}

// Classifier classifies shell commands against the workspace policy
// and the pattern tables in rules.go.
type Classifier struct {
	ws     *workspace.Policy
	logger *slog.Logger

	// wsPathPattern extracts collection-root-shaped substrings from a
	// command so each can be containment-checked.
	wsPathPattern *regexp.Regexp

	// maxScriptBytes caps how much of a script file is read for
	// pre-execution scanning.
	maxScriptBytes int64
}

// NewClassifier creates a classifier bound to a workspace policy.
func NewClassifier(ws *workspace.Policy, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		ws:     ws,
		logger: logger.With("component", "guard"),
		wsPathPattern: regexp.MustCompile(
			regexp.QuoteMeta(ws.CollectionRoot) + `(?:/[^\s"'` + "`" + `;|&)]*)?`),
		maxScriptBytes: 256 * 1024,
	}
}

// Classify runs the three passes over a command. The first pass that
// produces a blocked decision wins; the denylist pass decides between
// allowed and dangerous.
func (c *Classifier) Classify(command string, cctx Context) Decision {
	command = strings.TrimSpace(command)
	if command == "" {
		return Decision{Blocked: true, Rule: "empty", Reason: "empty command"}
	}

	if d := c.checkWorkspaceIsolation(command, cctx); d.Blocked {
		c.logDecision(command, d)
		return d
	}
	if d := c.checkServerExecution(command, cctx); d.Blocked {
		c.logDecision(command, d)
		return d
	}
	d := c.checkDenylist(command, cctx)
	if d.Blocked || d.Dangerous {
		c.logDecision(command, d)
	}
	return d
}

// ---------- Pass 1: workspace isolation ----------

func (c *Classifier) checkWorkspaceIsolation(command string, cctx Context) Decision {
	if strings.Contains(command, "/run/secrets") {
		return Decision{Blocked: true, Rule: "secrets-mount", Reason: "the secrets mount is never accessible"}
	}

	// Literal parent traversal anywhere in the command.
	if strings.Contains(command, "../") || cdParentPattern.MatchString(command) {
		return Decision{Blocked: true, Rule: "traversal", Reason: "parent directory traversal is not allowed"}
	}

	// Every cd target must be statically provable as in-workspace.
	for _, m := range cdTargetPattern.FindAllStringSubmatch(command, -1) {
		target := m[1]
		if target == "" {
			return Decision{Blocked: true, Rule: "cd-no-target", Reason: "cd without an explicit target is not allowed"}
		}
		if target == "-" || strings.HasPrefix(target, "~") {
			return Decision{Blocked: true, Rule: "cd-home", Reason: "cd outside the workspace is not allowed"}
		}
		if substitutionPattern.MatchString(target) {
			return Decision{Blocked: true, Rule: "cd-dynamic", Reason: "cd to a dynamically computed target is not allowed"}
		}
		resolved := workspace.Resolve(strings.Trim(target, `"'`), cctx.WorkingDir)
		if d := c.checkWorkspacePath(resolved, cctx); d.Blocked {
			return d
		}
		if !workspace.IsInside(resolved, cctx.WorkspaceRoot) {
			return Decision{
				Blocked: true,
				Rule:    "cd-escape",
				Reason:  fmt.Sprintf("cd target %q is outside your workspace", target),
			}
		}
	}

	// Any workspace-shaped substring must point into the caller's own
	// root.
	for _, raw := range c.wsPathPattern.FindAllString(command, -1) {
		if d := c.checkWorkspacePath(filepath.Clean(raw), cctx); d.Blocked {
			return d
		}
	}

	return Decision{}
}

// checkWorkspacePath applies the categorical carve-outs and containment
// to one extracted absolute path.
func (c *Classifier) checkWorkspacePath(path string, cctx Context) Decision {
	if path == c.ws.CollectionRoot {
		return Decision{Blocked: true, Rule: "workspace-root", Reason: "the workspace root itself is not accessible"}
	}
	shared := c.ws.SharedDir()
	if path == shared || workspace.IsInside(path, shared) {
		return Decision{Blocked: true, Rule: "workspace-shared", Reason: "the shared workspace area is not accessible"}
	}
	if strings.HasPrefix(path, c.ws.CollectionRoot) && !workspace.IsInside(path, cctx.WorkspaceRoot) {
		return Decision{
			Blocked: true,
			Rule:    "workspace-foreign",
			Reason:  fmt.Sprintf("path %q is outside your workspace", path),
		}
	}
	return Decision{}
}

// ---------- Pass 2: server execution ----------

func (c *Classifier) checkServerExecution(command string, cctx Context) Decision {
	for _, rule := range serverRules {
		if rule.Pattern.MatchString(command) {
			return Decision{
				Blocked: true,
				Rule:    rule.Name,
				Reason:  "starting a server is not allowed: " + rule.Message,
			}
		}
	}

	// One-liner evaluation with inline server code.
	if m := inlineEvalPattern.FindStringSubmatch(command); m != nil {
		inline := strings.Trim(m[1], `"'`)
		if inlineServerPattern.MatchString(inline) {
			return Decision{Blocked: true, Rule: "inline-server", Reason: "inline script creates a server"}
		}
	}

	// A command like `node server.js` looks innocuous while the file
	// it runs is not. Scan every script file the command would execute.
	for _, token := range strings.Fields(command) {
		token = strings.Trim(token, `"';&|()`)
		if !scriptFilePattern.MatchString(token) {
			continue
		}
		if d := c.scanScriptFile(token, cctx); d.Blocked {
			return d
		}
	}

	return Decision{}
}

// ---------- Pass 3: denylist / approval ----------

func (c *Classifier) checkDenylist(command string, cctx Context) Decision {
	for _, rule := range blockedRules {
		if rule.Pattern.MatchString(command) {
			return Decision{Blocked: true, Rule: rule.Name, Reason: rule.Message}
		}
	}

	for _, rule := range dangerousRules {
		if rule.Pattern.MatchString(command) {
			if cctx.ChatType.IsGroupLike() {
				return Decision{
					Blocked: true,
					Rule:    rule.Name,
					Reason:  rule.Message + "; approval is not available in group chats",
				}
			}
			return Decision{Dangerous: true, Rule: rule.Name, Reason: rule.Message}
		}
	}

	return Decision{}
}

func (c *Classifier) logDecision(command string, d Decision) {
	verdict := "dangerous"
	if d.Blocked {
		verdict = "blocked"
	}
	c.logger.Info("command classified",
		"verdict", verdict,
		"rule", d.Rule,
		"command", truncateForLog(command, 120),
	)
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
