// Package archive packs files into a single in-memory archive.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// Archiver collects entries and encodes them.
type Archiver interface {
	// AddEntry adds a file at name, a slash separated relative path.
	AddEntry(name string, data []byte) error
	// Finalize encodes the archive. No entry can be added afterward.
	Finalize() ([]byte, error)
}

// ErrFinalized is returned when using a Zip after Finalize.
var ErrFinalized = errors.New("archive already finalized")

// Zip is an Archiver producing a deflated zip file.
type Zip struct {
	buf      bytes.Buffer
	w        *zip.Writer
	modified time.Time
	done     bool
}

var _ Archiver = (*Zip)(nil)

// NewZip returns an empty zip archive. Entries are stamped with the creation
// time of the archive.
func NewZip() *Zip {
	z := &Zip{modified: time.Now()}
	z.w = zip.NewWriter(&z.buf)
	return z
}

// AddEntry implements Archiver.
func (z *Zip) AddEntry(name string, data []byte) error {
	if z.done {
		return ErrFinalized
	}
	clean := path.Clean(strings.TrimLeft(name, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid archive entry %q", name)
	}
	hdr := &zip.FileHeader{
		Name:     clean,
		Method:   zip.Deflate,
		Modified: z.modified,
	}
	hdr.SetMode(0o644)
	w, err := z.w.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("creating %q: %w", clean, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %q: %w", clean, err)
	}
	return nil
}

// Finalize implements Archiver.
func (z *Zip) Finalize() ([]byte, error) {
	if z.done {
		return nil, ErrFinalized
	}
	z.done = true
	if err := z.w.Close(); err != nil {
		return nil, fmt.Errorf("archive close: %w", err)
	}
	return z.buf.Bytes(), nil
}
