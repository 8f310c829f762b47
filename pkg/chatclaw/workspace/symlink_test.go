package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	mustWrite := func(path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("nonexistent path cannot escape", func(t *testing.T) {
		res := CheckSymlinkEscape(filepath.Join(root, "new-file.txt"), root)
		if res.Escape {
			t.Errorf("unexpected escape: %s", res.Reason)
		}
	})

	t.Run("regular file inside is fine", func(t *testing.T) {
		path := filepath.Join(root, "plain.txt")
		mustWrite(path, "hello")
		res := CheckSymlinkEscape(path, root)
		if res.Escape {
			t.Errorf("unexpected escape: %s", res.Reason)
		}
	})

	t.Run("symlink within workspace is fine", func(t *testing.T) {
		target := filepath.Join(root, "target.txt")
		mustWrite(target, "data")
		link := filepath.Join(root, "inner-link")
		if err := os.Symlink(target, link); err != nil {
			t.Fatal(err)
		}
		res := CheckSymlinkEscape(link, root)
		if res.Escape {
			t.Errorf("unexpected escape: %s", res.Reason)
		}
	})

	t.Run("symlink escaping workspace is flagged", func(t *testing.T) {
		target := filepath.Join(outside, "secret.txt")
		mustWrite(target, "secret")
		link := filepath.Join(root, "escape-link")
		if err := os.Symlink(target, link); err != nil {
			t.Fatal(err)
		}
		res := CheckSymlinkEscape(link, root)
		if !res.Escape {
			t.Error("expected escape for symlink to outside target")
		}
	})

	t.Run("symlink to sensitive directory is flagged", func(t *testing.T) {
		link := filepath.Join(root, "etc-link")
		if err := os.Symlink("/etc/passwd", link); err != nil {
			t.Fatal(err)
		}
		res := CheckSymlinkEscape(link, root)
		if !res.Escape {
			t.Error("expected escape for symlink into /etc")
		}
	})

	t.Run("relative path resolves against root", func(t *testing.T) {
		res := CheckSymlinkEscape("plain.txt", root)
		if res.Escape {
			t.Errorf("unexpected escape: %s", res.Reason)
		}
	})
}
