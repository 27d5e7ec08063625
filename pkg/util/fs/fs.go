package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openshift/recipe-to-image/pkg/util/log"
)

var logger = log.StderrLog

// FileSystem allows r2i to work with the local filesystem and to be
// replaced by a fake in tests.
type FileSystem interface {
	Stat(path string) (os.FileInfo, error)
	Exists(path string) bool
	MkdirAll(dirname string) error
	Open(file string) (io.ReadCloser, error)
	ReadFile(file string) ([]byte, error)
	WriteFile(file string, data []byte) error
	Copy(sourcePath, targetPath string) error
	CopyContents(sourceDir, targetDir string) error
	CreateWorkingDirectory() (string, error)
	RemoveDirectory(dir string) error
	Walk(root string, walkFn filepath.WalkFunc) error
}

// NewFileSystem creates a new instance of the default FileSystem
// implementation.
func NewFileSystem() FileSystem {
	return &fs{}
}

type fs struct{}

// Stat returns a FileInfo describing the named file.
func (h *fs) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// Exists determines whether the given file exists.
func (h *fs) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MkdirAll creates the directory and all its parents.
func (h *fs) MkdirAll(dirname string) error {
	return os.MkdirAll(dirname, 0700)
}

// Open opens a file and returns a ReadCloser interface to that file.
func (h *fs) Open(filename string) (io.ReadCloser, error) {
	return os.Open(filename)
}

// ReadFile reads the whole file.
func (h *fs) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// WriteFile opens a file and writes data to it, returning error if such
// occurred.
func (h *fs) WriteFile(filename string, data []byte) error {
	return os.WriteFile(filename, data, 0600)
}

// Copy copies a single regular file from sourcePath to targetPath, keeping
// the permission bits of the source.
func (h *fs) Copy(sourcePath, targetPath string) error {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", sourcePath)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
		return err
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.OpenFile(targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	logger.V(5).Infof("Copied %s to %s", sourcePath, targetPath)
	return dst.Close()
}

// CopyContents copies the regular files and directories below sourceDir
// into targetDir. Symlinks are skipped.
func (h *fs) CopyContents(sourceDir, targetDir string) error {
	return filepath.Walk(sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".git" && rel != "." {
				return filepath.SkipDir
			}
			return os.MkdirAll(filepath.Join(targetDir, rel), 0700)
		}
		if !info.Mode().IsRegular() {
			logger.V(4).Infof("Skipping %s, not a regular file", path)
			return nil
		}
		return h.Copy(path, filepath.Join(targetDir, rel))
	})
}

// CreateWorkingDirectory creates a directory to be used for a build.
func (h *fs) CreateWorkingDirectory() (string, error) {
	return os.MkdirTemp("", "r2i")
}

// RemoveDirectory removes the specified directory and all its contents.
func (h *fs) RemoveDirectory(dir string) error {
	return os.RemoveAll(dir)
}

// Walk walks the file tree rooted at root, calling walkFn for each file or
// directory in the tree, including root.
func (h *fs) Walk(root string, walkFn filepath.WalkFunc) error {
	return filepath.Walk(root, walkFn)
}
