package notes

import (
	"context"

	apperr "github.com/maruel/mdnotes/internal/errors"
	"github.com/maruel/mdnotes/internal/storage/git"
	"github.com/maruel/mdnotes/internal/storage/vfs"
)

// Repo is the handle to an initialized storage root and its history. It is
// created once by EnsureInitialized and passed to NewStore.
type Repo struct {
	storage *vfs.Storage
	git     git.Repository
	opts    options
	created bool
}

// Storage returns the file storage backend.
func (r *Repo) Storage() *vfs.Storage {
	return r.storage
}

// Git returns the version control backend.
func (r *Repo) Git() git.Repository {
	return r.git
}

// Created reports whether this call to EnsureInitialized created the history.
func (r *Repo) Created() bool {
	return r.created
}

// EnsureInitialized makes sure the storage root exists and holds a git
// repository, creating either when missing. It is idempotent: when both
// already exist nothing is written.
//
// Failures are logged and returned with kind STORAGE_ERROR or HISTORY_ERROR.
// Callers may ignore them and retry later.
func EnsureInitialized(ctx context.Context, st *vfs.Storage, opts ...Option) (*Repo, error) {
	const op = "EnsureInitialized"
	o := defaultOptions()
	o.apply(opts)
	log := o.logger()

	if err := st.MkdirAll("."); err != nil {
		err := apperr.Storage(op, "failed to create storage root", err)
		log.ErrorContext(ctx, "notes: init failed", "root", st.String(), "err", err)
		return nil, err
	}

	bfs := st.Filesystem()
	exists, err := git.IsRepository(bfs)
	if err != nil {
		err := apperr.Storage(op, "failed to check history metadata", err)
		log.ErrorContext(ctx, "notes: init failed", "root", st.String(), "err", err)
		return nil, err
	}

	var repo *git.GoGitRepo
	if exists {
		repo, err = git.Open(ctx, bfs, o.author)
	} else {
		repo, err = git.Init(ctx, bfs, o.author)
	}
	if err != nil {
		err := apperr.History(op, "failed to prepare history", err)
		log.ErrorContext(ctx, "notes: init failed", "root", st.String(), "err", err)
		return nil, err
	}
	repo.SetClock(o.now)
	if !exists {
		log.InfoContext(ctx, "notes: initialized repository", "root", st.String())
	}
	return &Repo{storage: st, git: repo, opts: o, created: !exists}, nil
}
