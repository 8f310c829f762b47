// Package guard – scripts.go implements pre-execution scanning of
// script files referenced by a command. The command string itself may
// look innocuous (node server.js) while the file it runs is not.
package guard

import (
	"os"
	"strings"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

// scanScriptFile reads a script file the command would execute and
// applies the sensitive-content rules to it. Files that do not exist
// are left to the executor to fail on; oversized files are blocked
// rather than partially scanned.
func (c *Classifier) scanScriptFile(token string, cctx Context) Decision {
	path := workspace.Resolve(token, cctx.WorkingDir)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Decision{}
	}
	if info.Size() > c.maxScriptBytes {
		return Decision{
			Blocked: true,
			Rule:    "script-too-large",
			Reason:  "script file is too large to scan before execution",
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("cannot read script for scanning", "path", path, "error", err)
		return Decision{}
	}
	content := string(data)

	if res := workspace.ClassifyContent(content); res.Dangerous {
		return Decision{
			Blocked: true,
			Rule:    "script-" + res.Rule,
			Reason:  "script file " + token + ": " + res.Reason,
		}
	}

	if strings.Contains(content, "../") {
		return Decision{
			Blocked: true,
			Rule:    "script-traversal",
			Reason:  "script file " + token + " contains parent directory traversal",
		}
	}

	// Workspace references inside the script are held to the same
	// containment rules as the command itself.
	for _, raw := range c.wsPathPattern.FindAllString(content, -1) {
		if d := c.checkWorkspacePath(raw, cctx); d.Blocked {
			d.Reason = "script file " + token + ": " + d.Reason
			return d
		}
	}

	if inlineServerPattern.MatchString(content) {
		return Decision{
			Blocked: true,
			Rule:    "script-server",
			Reason:  "script file " + token + " creates a server",
		}
	}

	return Decision{}
}
