// Records creation and modification times on top of a billy filesystem.

package vfs

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
)

// Times is returned by FileInfo.Sys() for files tracked by Timed.
type Times struct {
	Created  time.Time
	Modified time.Time
}

// Timed wraps a billy.Filesystem that does not keep timestamps (memfs reports
// time.Now() for everything) and records them itself.
//
// Only paths written through Timed are tracked; everything else reports the
// underlying FileInfo unchanged.
type Timed struct {
	billy.Filesystem
	now func() time.Time

	mu    sync.Mutex
	times map[string]Times
}

// NewTimed wraps base. now defaults to time.Now.
func NewTimed(base billy.Filesystem, now func() time.Time) *Timed {
	if now == nil {
		now = time.Now
	}
	return &Timed{Filesystem: base, now: now, times: map[string]Times{}}
}

func timedKey(name string) string {
	return path.Clean("/" + filepath.ToSlash(name))
}

func (t *Timed) touch(name string) {
	k := timedKey(name)
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.times[k]
	if !ok {
		v.Created = now
	}
	v.Modified = now
	t.times[k] = v
}

func (t *Timed) lookup(name string) (Times, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.times[timedKey(name)]
	return v, ok
}

func (t *Timed) wrap(name string, fi os.FileInfo) os.FileInfo {
	if fi == nil {
		return nil
	}
	if v, ok := t.lookup(name); ok {
		return &timedInfo{FileInfo: fi, times: v}
	}
	return fi
}

// Create implements billy.Basic.
func (t *Timed) Create(filename string) (billy.File, error) {
	return t.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// OpenFile implements billy.Basic.
func (t *Timed) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	f, err := t.Filesystem.OpenFile(filename, flag, perm)
	if err != nil {
		return nil, err
	}
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) == 0 {
		return f, nil
	}
	t.touch(filename)
	return &timedFile{File: f, fs: t, name: filename}, nil
}

// Stat implements billy.Basic.
func (t *Timed) Stat(filename string) (os.FileInfo, error) {
	fi, err := t.Filesystem.Stat(filename)
	if err != nil {
		return nil, err
	}
	return t.wrap(filename, fi), nil
}

// Lstat implements billy.Symlink.
func (t *Timed) Lstat(filename string) (os.FileInfo, error) {
	fi, err := t.Filesystem.Lstat(filename)
	if err != nil {
		return nil, err
	}
	return t.wrap(filename, fi), nil
}

// ReadDir implements billy.Dir.
func (t *Timed) ReadDir(dir string) ([]os.FileInfo, error) {
	entries, err := t.Filesystem.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]os.FileInfo, len(entries))
	for i, fi := range entries {
		out[i] = t.wrap(path.Join(filepath.ToSlash(dir), fi.Name()), fi)
	}
	return out, nil
}

// Remove implements billy.Basic.
func (t *Timed) Remove(filename string) error {
	if err := t.Filesystem.Remove(filename); err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.times, timedKey(filename))
	t.mu.Unlock()
	return nil
}

// Rename implements billy.Basic.
func (t *Timed) Rename(from, to string) error {
	if err := t.Filesystem.Rename(from, to); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kf, kt := timedKey(from), timedKey(to)
	if v, ok := t.times[kf]; ok {
		delete(t.times, kf)
		v.Modified = t.now()
		t.times[kt] = v
	}
	return nil
}

// timedFile updates the modification time when a written file is closed.
type timedFile struct {
	billy.File
	fs      *Timed
	name    string
	written bool
}

func (f *timedFile) Write(p []byte) (int, error) {
	f.written = true
	return f.File.Write(p)
}

func (f *timedFile) Truncate(size int64) error {
	f.written = true
	return f.File.Truncate(size)
}

func (f *timedFile) Close() error {
	err := f.File.Close()
	if f.written {
		f.fs.touch(f.name)
	}
	return err
}

// timedInfo overrides the modification time and exposes Times via Sys.
type timedInfo struct {
	fs.FileInfo
	times Times
}

func (i *timedInfo) ModTime() time.Time { return i.times.Modified }
func (i *timedInfo) Sys() any           { return &i.times }
