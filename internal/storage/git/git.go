// Defines the Repository interface and shared types for git operations.

// Package git is the version control backend of the note store.
//
// It records every note mutation as a commit in a git repository that lives
// on the same billy filesystem as the notes themselves.
package git

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/go-git/go-billy/v5"
)

// DirName is the backend private metadata path at the repository root.
const DirName = ".git"

// Default identity used when an Author field is empty.
const (
	DefaultName  = "Anonymous"
	DefaultEmail = "anonymous@localhost"
)

// ErrFileNotFound is returned by FileAtCommit when the path is not in the
// commit's tree.
var ErrFileNotFound = errors.New("file not found at commit")

// ErrRevisionNotFound is returned when a revision cannot be resolved.
var ErrRevisionNotFound = errors.New("revision not found")

// Repository is the interface for git operations on a single repository.
type Repository interface {
	// CommitTx executes fn while holding a lock, stages the returned files and
	// commits them. A returned file missing from the worktree is staged as a
	// removal; if it was never tracked it is skipped. The commit is made even
	// when nothing changed. If fn returns an error, no commit is made.
	CommitTx(ctx context.Context, author Author, fn func() (msg string, files []string, err error)) (string, error)
	// Log returns commit history newest first. An empty path means the whole
	// repository. n <= 0 means no limit.
	Log(ctx context.Context, path string, n int) ([]*Commit, error)
	// FileAtCommit retrieves the content of a file at a specific commit.
	FileAtCommit(ctx context.Context, hash, path string) ([]byte, error)
}

// IsRepository reports whether bfs holds git metadata at its root.
func IsRepository(bfs billy.Filesystem) (bool, error) {
	_, err := bfs.Stat(DirName)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Author identifies who made a change for git commits.
type Author struct {
	Name  string
	Email string
}

func (a Author) orDefault(def Author) Author {
	if a.Name == "" {
		a.Name = def.Name
	}
	if a.Email == "" {
		a.Email = def.Email
	}
	return a
}

// Commit represents a commit in git history.
type Commit struct {
	Hash           string    `json:"hash"`
	Message        string    `json:"message"` // Subject line.
	Body           string    `json:"body"`    // Commit body (may be empty).
	Author         string    `json:"author"`
	AuthorEmail    string    `json:"author_email"`
	AuthorDate     time.Time `json:"author_date"`
	Committer      string    `json:"committer"`
	CommitterEmail string    `json:"committer_email"`
	CommitDate     time.Time `json:"commit_date"`
}
