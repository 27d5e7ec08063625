package test

import (
	"io"
	"sync"

	"github.com/openshift/recipe-to-image/pkg/util/fs"
)

// FakeFileSystem wraps the real file system and fails selected operations
// with the configured errors.
type FakeFileSystem struct {
	fs.FileSystem

	WriteFileError     error
	OpenError          error
	MkdirAllError      error
	CreateWorkDirError error
	RemoveDirError     error

	WrittenFiles       []string
	RemovedDirectories []string

	mutex sync.Mutex
}

// NewFakeFileSystem returns a FakeFileSystem over the real file system.
func NewFakeFileSystem() *FakeFileSystem {
	return &FakeFileSystem{FileSystem: fs.NewFileSystem()}
}

// WriteFile records the file name and writes it unless WriteFileError is set.
func (f *FakeFileSystem) WriteFile(file string, data []byte) error {
	f.mutex.Lock()
	f.WrittenFiles = append(f.WrittenFiles, file)
	f.mutex.Unlock()
	if f.WriteFileError != nil {
		return f.WriteFileError
	}
	return f.FileSystem.WriteFile(file, data)
}

// Open opens file unless OpenError is set.
func (f *FakeFileSystem) Open(file string) (io.ReadCloser, error) {
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	return f.FileSystem.Open(file)
}

// MkdirAll creates dirname unless MkdirAllError is set.
func (f *FakeFileSystem) MkdirAll(dirname string) error {
	if f.MkdirAllError != nil {
		return f.MkdirAllError
	}
	return f.FileSystem.MkdirAll(dirname)
}

// CreateWorkingDirectory creates a temporary directory unless
// CreateWorkDirError is set.
func (f *FakeFileSystem) CreateWorkingDirectory() (string, error) {
	if f.CreateWorkDirError != nil {
		return "", f.CreateWorkDirError
	}
	return f.FileSystem.CreateWorkingDirectory()
}

// RemoveDirectory records and removes dir unless RemoveDirError is set.
func (f *FakeFileSystem) RemoveDirectory(dir string) error {
	f.mutex.Lock()
	f.RemovedDirectories = append(f.RemovedDirectories, dir)
	f.mutex.Unlock()
	if f.RemoveDirError != nil {
		return f.RemoveDirError
	}
	return f.FileSystem.RemoveDirectory(dir)
}
