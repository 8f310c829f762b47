// Package agent – tools_files.go registers the filesystem tools. Every
// path argument passes the workspace policy and the symlink check before
// any I/O, and file content read back to the model goes through the
// output sanitizer.
package agent

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

const (
	// maxReadBytes caps how much of a file a single read returns.
	maxReadBytes = 256 * 1024

	// maxSearchResults caps grep-style search output lines.
	maxSearchResults = 200

	// maxListEntries caps directory listing size.
	maxListEntries = 500
)

// checkPath runs the full path policy for one tool argument and returns
// the resolved absolute path. Both the lexical containment check and
// the on-disk symlink check must pass.
func (a *Assistant) checkPath(inv Invocation, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	abs := workspace.Resolve(path, inv.WorkingDir)
	if pc := a.ws.CheckPath(path, inv.WorkingDir, inv.WorkspaceRoot); !pc.Allowed {
		return "", BlockedErrorf("%s", pc.Reason)
	}
	if sc := workspace.CheckSymlinkEscape(abs, inv.WorkspaceRoot); sc.Escape {
		return "", BlockedErrorf("%s", sc.Reason)
	}
	return abs, nil
}

func (a *Assistant) registerFileTools() {
	a.tools.Register(MakeToolDefinition("read_file",
		"Read a file from your workspace. Returns the content, optionally a line range.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string", "description": "File path, absolute or relative to the working directory"},
				"offset": map[string]any{"type": "integer", "description": "1-based line to start from"},
				"limit":  map[string]any{"type": "integer", "description": "Maximum number of lines"},
			},
			"required": []string{"path"},
		}), a.toolReadFile)

	a.tools.Register(MakeToolDefinition("write_file",
		"Create or overwrite a file in your workspace with the given content.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "File path to write"},
				"content": map[string]any{"type": "string", "description": "Full file content"},
			},
			"required": []string{"path", "content"},
		}), a.toolWriteFile)

	a.tools.Register(MakeToolDefinition("edit_file",
		"Replace an exact string in a file. The old string must match exactly once unless replace_all is set.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        map[string]any{"type": "string"},
				"old_string":  map[string]any{"type": "string"},
				"new_string":  map[string]any{"type": "string"},
				"replace_all": map[string]any{"type": "boolean"},
			},
			"required": []string{"path", "old_string", "new_string"},
		}), a.toolEditFile)

	a.tools.Register(MakeToolDefinition("delete_file",
		"Delete a file or an empty directory in your workspace. Set recursive for non-empty directories.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":      map[string]any{"type": "string"},
				"recursive": map[string]any{"type": "boolean"},
			},
			"required": []string{"path"},
		}), a.toolDeleteFile)

	a.tools.Register(MakeToolDefinition("list_dir",
		"List the entries of a directory in your workspace.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Directory to list, defaults to the working directory"},
			},
		}), a.toolListDir)

	a.tools.Register(MakeToolDefinition("search_files",
		"Search file contents in your workspace with a regular expression.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Regular expression to match"},
				"path":    map[string]any{"type": "string", "description": "Directory to search, defaults to the working directory"},
				"glob":    map[string]any{"type": "string", "description": "Filename glob filter, e.g. *.go"},
			},
			"required": []string{"pattern"},
		}), a.toolSearchFiles)

	a.tools.Register(MakeToolDefinition("glob_files",
		"Find files in your workspace matching a glob pattern like **/*.md.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string"},
				"path":    map[string]any{"type": "string", "description": "Directory to search, defaults to the working directory"},
			},
			"required": []string{"pattern"},
		}), a.toolGlobFiles)
}

// ---------- Handlers ----------

func (a *Assistant) toolReadFile(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)
	abs, err := a.checkPath(inv, getString(args, "path"))
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, use list_dir", getString(args, "path"))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	content := string(data)
	truncated := false
	if len(content) > maxReadBytes {
		content = content[:maxReadBytes]
		truncated = true
	}

	if offset := getInt(args, "offset"); offset > 0 {
		lines := strings.Split(content, "\n")
		if offset > len(lines) {
			return map[string]any{"success": true, "content": "", "note": "offset past end of file"}, nil
		}
		lines = lines[offset-1:]
		if limit := getInt(args, "limit"); limit > 0 && limit < len(lines) {
			lines = lines[:limit]
			truncated = true
		}
		content = strings.Join(lines, "\n")
	}

	// Reads are sanitized like command output: a file full of secrets
	// must not flow back into the conversation even when reading it was
	// allowed.
	clean, blocked := a.sanitizer.Process(content)

	out := map[string]any{
		"success": true,
		"content": clean,
	}
	if truncated {
		out["note"] = fmt.Sprintf("file truncated to %d bytes", maxReadBytes)
	}
	if blocked {
		out["note"] = "output withheld by the sanitizer"
	}
	return out, nil
}

func (a *Assistant) toolWriteFile(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)
	abs, err := a.checkPath(inv, getString(args, "path"))
	if err != nil {
		return nil, err
	}

	content := getString(args, "content")

	// Content is classified before a single byte lands on disk: a write
	// either completes in full or does not happen.
	if cc := workspace.ClassifyContent(content); cc.Dangerous {
		return nil, BlockedErrorf("file content rejected (%s): %s", cc.Rule, cc.Reason)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return map[string]any{
		"success": true,
		"path":    abs,
		"bytes":   len(content),
	}, nil
}

func (a *Assistant) toolEditFile(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)
	abs, err := a.checkPath(inv, getString(args, "path"))
	if err != nil {
		return nil, err
	}

	oldStr := getString(args, "old_string")
	newStr := getString(args, "new_string")
	if oldStr == "" {
		return nil, fmt.Errorf("old_string is required")
	}
	if oldStr == newStr {
		return nil, fmt.Errorf("old_string and new_string are identical")
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	content := string(data)

	count := strings.Count(content, oldStr)
	replaceAll := getBool(args, "replace_all")
	switch {
	case count == 0:
		return nil, fmt.Errorf("old_string not found in %s", getString(args, "path"))
	case count > 1 && !replaceAll:
		return nil, fmt.Errorf("old_string matches %d times, make it unique or set replace_all", count)
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldStr, newStr)
	} else {
		updated = strings.Replace(content, oldStr, newStr, 1)
	}

	if cc := workspace.ClassifyContent(updated); cc.Dangerous {
		return nil, BlockedErrorf("resulting file content rejected (%s): %s", cc.Rule, cc.Reason)
	}

	if err := os.WriteFile(abs, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return map[string]any{
		"success":      true,
		"path":         abs,
		"replacements": count,
	}, nil
}

func (a *Assistant) toolDeleteFile(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)
	abs, err := a.checkPath(inv, getString(args, "path"))
	if err != nil {
		return nil, err
	}

	// Deleting the workspace root itself is never what anyone meant.
	if abs == inv.WorkspaceRoot {
		return nil, BlockedErrorf("refusing to delete the workspace root")
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("deleting: %w", err)
	}

	if info.IsDir() && getBool(args, "recursive") {
		err = os.RemoveAll(abs)
	} else {
		err = os.Remove(abs)
	}
	if err != nil {
		return nil, fmt.Errorf("deleting: %w", err)
	}

	return map[string]any{"success": true, "deleted": abs}, nil
}

func (a *Assistant) toolListDir(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)
	path := getString(args, "path")
	if path == "" {
		path = inv.WorkingDir
	}
	abs, err := a.checkPath(inv, path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("listing directory: %w", err)
	}

	var lines []string
	for _, entry := range entries {
		if len(lines) >= maxListEntries {
			lines = append(lines, "... more entries omitted")
			break
		}
		// Sensitive names are not enumerated.
		if blocked, _ := workspace.CheckSensitivePath(filepath.Join(abs, entry.Name())); blocked {
			continue
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	if len(lines) == 0 {
		return map[string]any{"success": true, "entries": []string{}, "note": "directory is empty"}, nil
	}
	return map[string]any{"success": true, "entries": lines}, nil
}

func (a *Assistant) toolSearchFiles(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)

	pattern := getString(args, "pattern")
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	dir := getString(args, "path")
	if dir == "" {
		dir = inv.WorkingDir
	}
	abs, err := a.checkPath(inv, dir)
	if err != nil {
		return nil, err
	}

	glob := getString(args, "glob")

	var matches []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil || len(matches) >= maxSearchResults {
			return nil
		}
		if d.IsDir() {
			// Symlinked directories are not followed: a link out of the
			// workspace must not widen the search.
			if d.Type()&fs.ModeSymlink != 0 {
				return fs.SkipDir
			}
			if blocked, _ := workspace.CheckSensitivePath(path); blocked {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		// Sensitive files are unsearchable even inside the workspace.
		if blocked, _ := workspace.CheckSensitivePath(path); blocked {
			return nil
		}
		if glob != "" {
			if ok, _ := filepath.Match(glob, d.Name()); !ok {
				return nil
			}
		}
		data, err := os.ReadFile(path)
		if err != nil || len(data) > maxReadBytes {
			return nil
		}
		rel, _ := filepath.Rel(abs, path)
		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, i+1, strings.TrimSpace(line)))
				if len(matches) >= maxSearchResults {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	if len(matches) == 0 {
		return map[string]any{"success": true, "matches": []string{}, "note": "no matches"}, nil
	}
	clean, _ := a.sanitizer.Process(strings.Join(matches, "\n"))
	return map[string]any{"success": true, "matches": strings.Split(clean, "\n")}, nil
}

func (a *Assistant) toolGlobFiles(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)

	pattern := getString(args, "pattern")
	if pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}

	dir := getString(args, "path")
	if dir == "" {
		dir = inv.WorkingDir
	}
	abs, err := a.checkPath(inv, dir)
	if err != nil {
		return nil, err
	}

	var found []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil || len(found) >= maxListEntries {
			return nil
		}
		if d.IsDir() {
			if d.Type()&fs.ModeSymlink != 0 {
				return fs.SkipDir
			}
			if blocked, _ := workspace.CheckSensitivePath(path); blocked {
				return fs.SkipDir
			}
			return nil
		}
		if blocked, _ := workspace.CheckSensitivePath(path); blocked {
			return nil
		}
		rel, _ := filepath.Rel(abs, path)
		if matchGlob(pattern, rel) {
			found = append(found, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("globbing: %w", err)
	}

	sort.Strings(found)
	return map[string]any{"success": true, "files": found}, nil
}

// matchGlob supports ** for arbitrary directory depth on top of
// filepath.Match semantics.
func matchGlob(pattern, rel string) bool {
	if !strings.Contains(pattern, "**") {
		ok, _ := filepath.Match(pattern, rel)
		if ok {
			return true
		}
		ok, _ = filepath.Match(pattern, filepath.Base(rel))
		return ok
	}
	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")
	if prefix != "" && !strings.HasPrefix(rel, prefix) {
		return false
	}
	if suffix == "" {
		return true
	}
	ok, _ := filepath.Match(suffix, filepath.Base(rel))
	return ok
}

// ---------- Argument helpers ----------

func getString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func getBool(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

func getInt(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
