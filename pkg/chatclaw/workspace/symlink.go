// Package workspace – symlink.go implements symlink escape detection.
//
// Containment alone is not enough: an attacker can create a symlink at
// an in-bounds path whose target lies outside the workspace. Real-path
// resolution closes that gap.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// sensitiveDirPrefixes are absolute directories a symlink target may
// never fall under, even when the target is technically reachable.
var sensitiveDirPrefixes = []string{
	"/etc",
	"/root",
	"/home",
	"/proc",
	"/sys",
	"/dev",
	"/var",
}

// SymlinkCheck is the result of a symlink escape check.
type SymlinkCheck struct {
	Escape bool
	Reason string
}

// CheckSymlinkEscape reports whether path, once resolved through the
// filesystem, escapes the workspace root or targets a sensitive system
// directory. A path that does not exist yet cannot escape (creation is
// vetted by containment alone).
func CheckSymlinkEscape(path, root string) SymlinkCheck {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	abs = filepath.Clean(abs)

	info, err := os.Lstat(abs)
	if err != nil {
		return SymlinkCheck{Escape: false}
	}

	// A symlink pointing at a sensitive system directory is an escape
	// regardless of where its target resolves.
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(abs)
		if err == nil {
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(abs), target)
			}
			target = filepath.Clean(target)
			if dir := sensitiveDirFor(target); dir != "" {
				return SymlinkCheck{
					Escape: true,
					Reason: fmt.Sprintf("symlink targets sensitive directory %s", dir),
				}
			}
		}
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Broken link or racing delete. Nothing readable behind it.
		return SymlinkCheck{Escape: false}
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		realRoot = filepath.Clean(root)
	}

	if !IsInside(resolved, realRoot) {
		return SymlinkCheck{
			Escape: true,
			Reason: fmt.Sprintf("path resolves to %q, outside the workspace", resolved),
		}
	}

	return SymlinkCheck{Escape: false}
}

// sensitiveDirFor returns the sensitive directory prefix that contains
// path, or empty if none does.
func sensitiveDirFor(path string) string {
	for _, dir := range sensitiveDirPrefixes {
		if path == dir || strings.HasPrefix(path, dir+string(os.PathSeparator)) {
			return dir
		}
	}
	return ""
}
