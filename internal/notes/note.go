// Package notes is the versioned note store.
//
// A Note is a markdown file at notes/<id>.md on a vfs.Storage. Every mutation
// is written to storage and then recorded as a commit in the git repository
// that shares the same root. The history is append-only: deleting a note adds
// a "Delete note" commit, earlier blobs stay reachable.
//
// Startup is two hooks: EnsureInitialized returns the *Repo handle, then
// (*Store).MigrateIfNeeded converts a legacy notes.md file.
package notes

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	apperr "github.com/maruel/mdnotes/internal/errors"
	"github.com/maruel/mdnotes/internal/storage/git"
)

// Paths relative to the storage root.
const (
	// NotesDir holds one file per note.
	NotesDir = "notes"
	// LegacyPath is the single-document file used before notes were split.
	LegacyPath = "notes.md"
	// DefaultTitle is used by CreateNote when the title is empty.
	DefaultTitle = "New Note"

	noteExt = ".md"
)

// Note is the user-facing view of one notes/<id>.md file.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Revision is an immutable history entry.
type Revision = git.Commit

// titleOf derives the title from the first line of content when it is a
// level one heading, else falls back to id.
func titleOf(id, content string) string {
	first, _, _ := strings.Cut(content, "\n")
	if rest, ok := strings.CutPrefix(first, "# "); ok {
		return strings.TrimSpace(rest)
	}
	return id
}

// notePath returns the storage path of a note.
func notePath(id string) string {
	return path.Join(NotesDir, id+noteExt)
}

// idFromName returns the id for a directory entry, or false if the entry is
// not a note file.
func idFromName(name string) (string, bool) {
	id, ok := strings.CutSuffix(name, noteExt)
	if !ok || validateID("", id) != nil {
		return "", false
	}
	return id, true
}

// validateID rejects ids that would not map to exactly one file in NotesDir.
func validateID(op, id string) error {
	switch {
	case id == "":
		return apperr.InvalidArgument(op, "empty note id")
	case id == "." || id == "..":
		return apperr.InvalidArgument(op, "invalid note id "+id)
	case strings.ContainsAny(id, `/\`):
		return apperr.InvalidArgument(op, "note id must not contain path separators: "+id)
	case strings.ContainsFunc(id, unicode.IsControl):
		return apperr.InvalidArgument(op, fmt.Sprintf("note id must not contain control characters: %q", id))
	}
	return nil
}
