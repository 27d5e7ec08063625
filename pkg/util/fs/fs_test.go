package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyContentsSkipsGitDirectory(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, ".git", "objects"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "web"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "web", "app.py"), []byte("print(1)"), 0644); err != nil {
		t.Fatal(err)
	}

	h := NewFileSystem()
	if err := h.CopyContents(src, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !h.Exists(filepath.Join(dst, "web", "app.py")) {
		t.Errorf("expected web/app.py to be copied")
	}
	if h.Exists(filepath.Join(dst, ".git")) {
		t.Errorf("expected .git to be skipped")
	}
	info, err := h.Stat(filepath.Join(dst, "web", "app.py"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected permissions to be kept, got %v", info.Mode().Perm())
	}
}

func TestCopyRejectsDirectories(t *testing.T) {
	h := NewFileSystem()
	if err := h.Copy(t.TempDir(), filepath.Join(t.TempDir(), "x")); err == nil {
		t.Error("expected an error copying a directory")
	}
}
