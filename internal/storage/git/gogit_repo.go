// Implements Repository using go-git on a billy filesystem.

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// GoGitRepo implements Repository using go-git (pure Go).
type GoGitRepo struct {
	author Author
	repo   *gogit.Repository
	now    func() time.Time
	mu     sync.Mutex
}

var _ Repository = (*GoGitRepo)(nil)

// Init creates an empty repository whose worktree is the root of bfs and
// whose metadata lives in bfs/.git. It fails if a repository already exists.
//
// author is the default identity for commits that don't specify one.
func Init(_ context.Context, bfs billy.Filesystem, author Author) (*GoGitRepo, error) {
	st, err := dotGitStorage(bfs)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.Init(st, bfs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize git repo: %w", err)
	}
	author = author.orDefault(Author{Name: DefaultName, Email: DefaultEmail})
	cfg, err := repo.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to read git config: %w", err)
	}
	cfg.User.Name = author.Name
	cfg.User.Email = author.Email
	if err := repo.SetConfig(cfg); err != nil {
		return nil, fmt.Errorf("failed to write git config: %w", err)
	}
	return &GoGitRepo{author: author, repo: repo, now: time.Now}, nil
}

// Open opens the existing repository rooted at bfs.
func Open(_ context.Context, bfs billy.Filesystem, author Author) (*GoGitRepo, error) {
	st, err := dotGitStorage(bfs)
	if err != nil {
		return nil, err
	}
	repo, err := gogit.Open(st, bfs)
	if err != nil {
		return nil, fmt.Errorf("failed to open git repo: %w", err)
	}
	return &GoGitRepo{
		author: author.orDefault(Author{Name: DefaultName, Email: DefaultEmail}),
		repo:   repo,
		now:    time.Now,
	}, nil
}

func dotGitStorage(bfs billy.Filesystem) (*filesystem.Storage, error) {
	dot, err := bfs.Chroot(DirName)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", DirName, err)
	}
	return filesystem.NewStorage(dot, cache.NewObjectLRUDefault()), nil
}

// SetClock overrides the time source used for commit signatures.
func (r *GoGitRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// stage records the current content of path in the index, or its removal
// when the file is gone. A path absent from both the worktree and the index
// is left alone.
func (r *GoGitRepo) stage(path string) error {
	w, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := w.Add(path); err != nil {
		if errors.Is(err, index.ErrEntryNotFound) {
			return nil
		}
		return fmt.Errorf("failed to stage %s: %w", path, err)
	}
	return nil
}

// CommitTx executes fn while holding a lock and commits the returned files.
func (r *GoGitRepo) CommitTx(_ context.Context, author Author, fn func() (msg string, files []string, err error)) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, files, err := fn()
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if err := r.stage(f); err != nil {
			return "", err
		}
	}
	return r.commit(msg, author)
}

func (r *GoGitRepo) commit(msg string, author Author) (string, error) {
	w, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	author = author.orDefault(r.author)
	now := r.now()
	h, err := w.Commit(msg, &gogit.CommitOptions{
		// Every save is a history entry, even without a diff.
		AllowEmptyCommits: true,
		Author: &object.Signature{
			Name:  author.Name,
			Email: author.Email,
			When:  now,
		},
		Committer: &object.Signature{
			Name:  r.author.Name,
			Email: r.author.Email,
			When:  now,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return h.String(), nil
}

// Log returns commit history newest first, optionally limited to path.
func (r *GoGitRepo) Log(_ context.Context, path string, n int) ([]*Commit, error) {
	opts := &gogit.LogOptions{}
	if path != "" && path != "." {
		opts.FileName = &path
	}

	iter, err := r.repo.Log(opts)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil // no commits yet is not an error
		}
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []*Commit
	for n <= 0 || len(commits) < n {
		c, err := iter.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return commits, fmt.Errorf("failed to walk log: %w", err)
		}
		// Split message into subject and body.
		subject, body, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, &Commit{
			Hash:           c.Hash.String(),
			Message:        subject,
			Body:           strings.TrimSpace(body),
			Author:         c.Author.Name,
			AuthorEmail:    c.Author.Email,
			AuthorDate:     c.Author.When,
			Committer:      c.Committer.Name,
			CommitterEmail: c.Committer.Email,
			CommitDate:     c.Committer.When,
		})
	}
	return commits, nil
}

// FileAtCommit retrieves the content of a file at a specific commit.
// hash may be a full or abbreviated hash, or any revision go-git resolves
// such as "HEAD" or "HEAD~1".
func (r *GoGitRepo) FileAtCommit(_ context.Context, hash, path string) ([]byte, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRevisionNotFound, hash, err)
	}

	c, err := r.repo.CommitObject(*h)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRevisionNotFound, hash)
		}
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}

	f, err := c.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
			return nil, fmt.Errorf("%w: %s@%s", ErrFileNotFound, path, hash)
		}
		return nil, fmt.Errorf("failed to get file at commit: %w", err)
	}

	reader, err := f.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}
