package notes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
	"unicode"

	apperr "github.com/maruel/mdnotes/internal/errors"
	"github.com/maruel/mdnotes/internal/storage/git"
	"github.com/maruel/mdnotes/internal/storage/vfs"
)

// maxIDAttempts bounds the search for a free id in CreateNote.
const maxIDAttempts = 1000

// Store maps notes onto files and records every mutation as a revision.
//
// Store serializes commits but does not isolate concurrent SaveNote and
// DeleteNote calls on the same id; callers serialize mutations per note.
type Store struct {
	st   *vfs.Storage
	git  git.Repository
	opts options
}

// NewStore returns a Store on the handle returned by EnsureInitialized. opts
// override the options passed to EnsureInitialized. WithClock also replaces
// the commit clock of the shared repository.
func NewStore(repo *Repo, opts ...Option) *Store {
	o := repo.opts
	o.clockSet = false
	o.apply(opts)
	if c, ok := repo.git.(clockSetter); ok && o.clockSet {
		c.SetClock(o.now)
	}
	return &Store{st: repo.storage, git: repo.git, opts: o}
}

type clockSetter interface {
	SetClock(now func() time.Time)
}

// ListNotes returns every note ordered by UpdatedAt, most recent first. Ties
// are ordered by id.
//
// A missing notes directory yields an empty list. An entry that cannot be
// read is logged and skipped.
func (s *Store) ListNotes(ctx context.Context) ([]*Note, error) {
	const op = "ListNotes"
	names, err := s.st.ReadDir(NotesDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Note{}, nil
		}
		return nil, s.fail(ctx, apperr.Storage(op, "failed to list notes", err))
	}
	out := make([]*Note, 0, len(names))
	for _, name := range names {
		id, ok := idFromName(name)
		if !ok {
			continue
		}
		n, err := s.readNote(id)
		if err != nil {
			s.opts.logger().WarnContext(ctx, "notes: skipping unreadable note", "id", id, "err", err)
			continue
		}
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetNote returns the note id. A missing note is reported as NOT_FOUND.
func (s *Store) GetNote(ctx context.Context, id string) (*Note, error) {
	const op = "GetNote"
	if err := validateID(op, id); err != nil {
		return nil, s.fail(ctx, err)
	}
	n, err := s.readNote(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, s.fail(ctx, apperr.NotFound(op, "note "+id).Wrap(err))
		}
		return nil, s.fail(ctx, apperr.Storage(op, "failed to read note "+id, err))
	}
	return n, nil
}

// CreateNote creates a note whose content is a heading with title and
// returns its id. An empty title means DefaultTitle.
func (s *Store) CreateNote(ctx context.Context, title string) (string, error) {
	const op = "CreateNote"
	if title == "" {
		title = DefaultTitle
	}
	if strings.ContainsFunc(title, unicode.IsControl) {
		return "", s.fail(ctx, apperr.InvalidArgument(op, "title must be a single line without control characters"))
	}
	created := s.opts.now()
	var id string
	err := s.commitTx(ctx, op, func() (string, []string, error) {
		if err := s.st.MkdirAll(NotesDir); err != nil {
			return "", nil, apperr.Storage(op, "failed to create notes directory", err)
		}
		for attempt := range maxIDAttempts {
			candidate, err := s.opts.newID(created, attempt)
			if err != nil {
				return "", nil, apperr.InvalidArgument(op, err.Error())
			}
			if err := validateID(op, candidate); err != nil {
				return "", nil, err
			}
			taken, err := s.st.Exists(notePath(candidate))
			if err != nil {
				return "", nil, apperr.Storage(op, "failed to check note "+candidate, err)
			}
			if !taken {
				id = candidate
				break
			}
		}
		if id == "" {
			return "", nil, apperr.New(apperr.ErrInternal, op, "no free note id")
		}
		if err := s.st.WriteFile(notePath(id), []byte("# "+title+"\n\n")); err != nil {
			return "", nil, apperr.Storage(op, "failed to write note "+id, err)
		}
		return "Create note: " + title, []string{notePath(id)}, nil
	})
	if err != nil {
		return "", err
	}
	s.opts.logger().DebugContext(ctx, "notes: created", "id", id)
	return id, nil
}

// SaveNote replaces the content of note id verbatim and records a revision,
// even when the content is unchanged.
func (s *Store) SaveNote(ctx context.Context, id, content string) error {
	const op = "SaveNote"
	if err := validateID(op, id); err != nil {
		return s.fail(ctx, err)
	}
	return s.commitTx(ctx, op, func() (string, []string, error) {
		if err := s.st.MkdirAll(NotesDir); err != nil {
			return "", nil, apperr.Storage(op, "failed to create notes directory", err)
		}
		if err := s.st.WriteFile(notePath(id), []byte(content)); err != nil {
			return "", nil, apperr.Storage(op, "failed to write note "+id, err)
		}
		return "Update note: " + id, []string{notePath(id)}, nil
	})
}

// DeleteNote removes note id and records the removal. If the file cannot be
// removed, including when it is already absent, no revision is recorded.
// A note file that was never committed is removed and still gets its
// "Delete note" revision.
//
// If the removal succeeds but the commit fails, the file stays removed and
// HISTORY_ERROR is returned.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	const op = "DeleteNote"
	if err := validateID(op, id); err != nil {
		return s.fail(ctx, err)
	}
	return s.commitTx(ctx, op, func() (string, []string, error) {
		if err := s.st.Remove(notePath(id)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", nil, apperr.NotFound(op, "note "+id).Wrap(err)
			}
			return "", nil, apperr.Storage(op, "failed to remove note "+id, err)
		}
		return "Delete note: " + id, []string{notePath(id)}, nil
	})
}

// History returns every revision of the repository, newest first.
func (s *Store) History(ctx context.Context) ([]*Revision, error) {
	const op = "History"
	revs, err := s.git.Log(ctx, "", 0)
	if err != nil {
		return nil, s.fail(ctx, apperr.History(op, "failed to read history", err))
	}
	if revs == nil {
		revs = []*Revision{}
	}
	return revs, nil
}

// Restore returns the content of the legacy notes.md file at revision.
//
// It only reads LegacyPath. Use NoteAt for a note in the notes directory.
func (s *Store) Restore(ctx context.Context, revision string) (string, error) {
	data, err := s.blobAt(ctx, "Restore", revision, LegacyPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// NoteHistory returns the revisions that changed note id, newest first. It
// is derived from the repository log at query time.
func (s *Store) NoteHistory(ctx context.Context, id string) ([]*Revision, error) {
	const op = "NoteHistory"
	if err := validateID(op, id); err != nil {
		return nil, s.fail(ctx, err)
	}
	revs, err := s.git.Log(ctx, notePath(id), 0)
	if err != nil {
		return nil, s.fail(ctx, apperr.History(op, "failed to read history of "+id, err))
	}
	if revs == nil {
		revs = []*Revision{}
	}
	return revs, nil
}

// NoteAt returns the content of note id as of revision. It does not modify
// the current note.
func (s *Store) NoteAt(ctx context.Context, id, revision string) (string, error) {
	const op = "NoteAt"
	if err := validateID(op, id); err != nil {
		return "", s.fail(ctx, err)
	}
	data, err := s.blobAt(ctx, op, revision, notePath(id))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) blobAt(ctx context.Context, op, revision, p string) ([]byte, error) {
	if revision == "" {
		return nil, s.fail(ctx, apperr.InvalidArgument(op, "empty revision"))
	}
	data, err := s.git.FileAtCommit(ctx, revision, p)
	if err != nil {
		if errors.Is(err, git.ErrFileNotFound) || errors.Is(err, git.ErrRevisionNotFound) {
			return nil, s.fail(ctx, apperr.NotFound(op, fmt.Sprintf("%s at %s", p, revision)).Wrap(err))
		}
		return nil, s.fail(ctx, apperr.History(op, "failed to read "+p, err))
	}
	return data, nil
}

// commitTx runs fn and commits the files it returns. Errors from fn are
// expected to carry a kind already; backend commit failures become
// HISTORY_ERROR.
func (s *Store) commitTx(ctx context.Context, op string, fn func() (string, []string, error)) error {
	if _, err := s.git.CommitTx(ctx, s.opts.author, fn); err != nil {
		var e *apperr.Error
		if !errors.As(err, &e) {
			err = apperr.History(op, "failed to record revision", err)
		}
		return s.fail(ctx, err)
	}
	return nil
}

// fail logs err and returns it. Absence is logged at debug level since it is
// an expected result.
func (s *Store) fail(ctx context.Context, err error) error {
	log := s.opts.logger()
	switch apperr.CodeOf(err) {
	case apperr.ErrNotFound:
		log.DebugContext(ctx, "notes: not found", "err", err)
	case apperr.ErrInvalidArgument:
		log.WarnContext(ctx, "notes: invalid request", "err", err)
	default:
		log.ErrorContext(ctx, "notes: operation failed", "err", err)
	}
	return err
}

func (s *Store) readNote(id string) (*Note, error) {
	p := notePath(id)
	fi, err := s.st.Stat(p)
	if err != nil {
		return nil, err
	}
	if fi.IsDir {
		return nil, fmt.Errorf("%s is a directory", p)
	}
	data, err := s.st.ReadFile(p)
	if err != nil {
		return nil, err
	}
	content := string(data)
	return &Note{
		ID:        id,
		Title:     titleOf(id, content),
		Content:   content,
		CreatedAt: fi.Created,
		UpdatedAt: fi.Modified,
	}, nil
}
