package notes

import (
	"context"
	"errors"
	"io/fs"

	apperr "github.com/maruel/mdnotes/internal/errors"
)

// MigratedID is the id given to the content of a legacy notes.md file.
const MigratedID = "note-1"

// MigrateIfNeeded moves a non-empty legacy notes.md into notes/note-1.md,
// records the revision "Migrate existing notes", then removes notes.md.
//
// A missing or empty notes.md is left alone. Since the legacy file is
// removed on success, calling it again is a no-op. It reports whether a
// migration happened.
func (s *Store) MigrateIfNeeded(ctx context.Context) (bool, error) {
	const op = "MigrateIfNeeded"
	data, err := s.st.ReadFile(LegacyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, s.fail(ctx, apperr.Storage(op, "failed to read legacy notes", err))
	}
	if len(data) == 0 {
		return false, nil
	}
	target := notePath(MigratedID)
	err = s.commitTx(ctx, op, func() (string, []string, error) {
		if err := s.st.MkdirAll(NotesDir); err != nil {
			return "", nil, apperr.Storage(op, "failed to create notes directory", err)
		}
		if err := s.st.WriteFile(target, data); err != nil {
			return "", nil, apperr.Storage(op, "failed to write "+target, err)
		}
		return "Migrate existing notes", []string{target}, nil
	})
	if err != nil {
		return false, err
	}
	if err := s.st.Remove(LegacyPath); err != nil {
		return true, s.fail(ctx, apperr.Storage(op, "failed to remove legacy notes", err))
	}
	s.opts.logger().InfoContext(ctx, "notes: migrated legacy notes", "id", MigratedID, "bytes", len(data))
	return true, nil
}
