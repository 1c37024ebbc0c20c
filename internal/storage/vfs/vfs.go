// Package vfs is the file storage backend of the note store.
//
// It exposes the handful of path operations the store needs on top of a
// go-billy filesystem. The same billy.Filesystem is handed to go-git so that
// notes and their history share one path namespace.
package vfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// FileInfo is the metadata of a single path.
type FileInfo struct {
	Name     string
	Size     int64
	IsDir    bool
	Created  time.Time // Falls back to Modified when the backend has no creation time.
	Modified time.Time
}

// Storage is a hierarchical byte store rooted at a directory.
//
// Errors for missing paths satisfy errors.Is(err, fs.ErrNotExist).
type Storage struct {
	fs   billy.Filesystem
	desc string
}

// NewOS returns a Storage backed by the directory dir on the local disk.
// The directory itself is not created; see MkdirAll.
func NewOS(dir string) *Storage {
	return &Storage{fs: osfs.New(dir), desc: dir}
}

// NewMemory returns an in-memory Storage. now is used to stamp writes; it
// defaults to time.Now.
func NewMemory(now func() time.Time) *Storage {
	return &Storage{fs: NewTimed(memfs.New(), now), desc: "memory"}
}

// String describes where the storage lives.
func (s *Storage) String() string {
	return s.desc
}

// Filesystem returns the underlying filesystem, shared with the version
// control backend.
func (s *Storage) Filesystem() billy.Filesystem {
	return s.fs
}

// MkdirAll creates p and any missing parents. An existing directory is not
// an error.
func (s *Storage) MkdirAll(p string) error {
	if err := s.fs.MkdirAll(p, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory %q: %w", p, err)
	}
	return nil
}

// Stat returns the metadata of p.
func (s *Storage) Stat(p string) (*FileInfo, error) {
	fi, err := s.fs.Stat(p)
	if err != nil {
		return nil, err
	}
	return newFileInfo(fi), nil
}

// Exists reports whether p exists. Errors other than "not found" are
// returned as-is.
func (s *Storage) Exists(p string) (bool, error) {
	_, err := s.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// ReadDir returns the sorted names of the entries in directory p.
func (s *Storage) ReadDir(p string) ([]string, error) {
	entries, err := s.fs.ReadDir(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// ReadFile returns the content of p.
func (s *Storage) ReadFile(p string) ([]byte, error) {
	return util.ReadFile(s.fs, p)
}

// WriteFile replaces the content of p, creating it if needed.
func (s *Storage) WriteFile(p string, data []byte) error {
	return util.WriteFile(s.fs, p, data, 0o644) //nolint:gosec // G306: 0o644 is intentional for user data files
}

// Remove deletes the file p. A missing file is reported as fs.ErrNotExist.
func (s *Storage) Remove(p string) error {
	if _, err := s.fs.Lstat(p); err != nil {
		return err
	}
	return s.fs.Remove(p)
}

func newFileInfo(fi os.FileInfo) *FileInfo {
	info := &FileInfo{
		Name:     fi.Name(),
		Size:     fi.Size(),
		IsDir:    fi.IsDir(),
		Created:  fi.ModTime(),
		Modified: fi.ModTime(),
	}
	if t, ok := fi.Sys().(*Times); ok && !t.Created.IsZero() {
		info.Created = t.Created
	}
	return info
}
