// Package workspace implements per-chat workspace isolation for file
// and command operations.
//
// Every caller gets an exclusive subtree under the workspace collection
// root (e.g. /workspace/<chat-id>). All file tools and every path-shaped
// argument inside a shell command must pass CheckPath before any I/O:
// it enforces containment (no traversal, no sibling access), denies the
// bare collection root and the reserved shared subtree, and rejects
// sensitive file names. Symlink escapes are caught separately by
// CheckSymlinkEscape after the path exists on disk.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// SharedDirName is the reserved subtree directly under the collection
// root that holds shared infrastructure data. It is never addressable
// by agent tools, only by infrastructure code.
const SharedDirName = "_shared"

// Policy resolves and validates workspace paths for callers.
type Policy struct {
	// CollectionRoot is the absolute directory that holds all caller
	// workspaces, one subdirectory per chat.
	CollectionRoot string

	logger *slog.Logger
}

// PathCheck is the result of a path policy decision.
type PathCheck struct {
	Allowed bool
	Reason  string
}

// NewPolicy creates a workspace policy rooted at collectionRoot.
func NewPolicy(collectionRoot string, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(collectionRoot)
	if err != nil {
		abs = collectionRoot
	}
	return &Policy{
		CollectionRoot: filepath.Clean(abs),
		logger:         logger.With("component", "workspace"),
	}
}

// RootFor returns the workspace root for a chat id, creating it lazily.
func (p *Policy) RootFor(chatID string) (string, error) {
	safe := sanitizeChatID(chatID)
	root := filepath.Join(p.CollectionRoot, safe)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace %q: %w", root, err)
	}
	return root, nil
}

// SharedDir returns the reserved shared subtree path.
func (p *Policy) SharedDir() string {
	return filepath.Join(p.CollectionRoot, SharedDirName)
}

// IsInside reports whether candidate, after normalization, equals root
// or is a proper descendant of root.
//
// The comparison is relative-path based rather than a string prefix
// test, so /workspace/1234 is NOT inside /workspace/123.
func IsInside(candidate, root string) bool {
	cand, err := filepath.Abs(candidate)
	if err != nil {
		return false
	}
	r, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(r), filepath.Clean(cand))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// Resolve converts a tool-supplied path to an absolute, lexically
// cleaned path. Relative paths are resolved against cwd (which must be
// inside the caller's workspace root).
func Resolve(path, cwd string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path)
}

// CheckPath decides whether a caller rooted at root may touch path.
// Relative paths are resolved against cwd. The categorical carve-outs
// run before generic containment: the bare collection root and the
// shared subtree are denied even when containment alone would not
// reject them.
func (p *Policy) CheckPath(path, cwd, root string) PathCheck {
	abs := Resolve(path, cwd)

	if abs == p.CollectionRoot {
		return PathCheck{Allowed: false, Reason: "the workspace root itself is not accessible"}
	}
	shared := p.SharedDir()
	if abs == shared || IsInside(abs, shared) {
		return PathCheck{Allowed: false, Reason: "the shared workspace area is not accessible"}
	}

	if !IsInside(abs, root) {
		return PathCheck{
			Allowed: false,
			Reason:  fmt.Sprintf("path %q is outside your workspace", path),
		}
	}

	if blocked, reason := CheckSensitivePath(abs); blocked {
		return PathCheck{Allowed: false, Reason: reason}
	}

	return PathCheck{Allowed: true}
}

// sanitizeChatID maps a chat id to a safe directory name.
func sanitizeChatID(chatID string) string {
	var b strings.Builder
	for _, r := range chatID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), ".")
	if s == "" || s == SharedDirName {
		s = "_chat"
	}
	return s
}
