package notes

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"

	"github.com/maruel/mdnotes/internal/archive"
	apperr "github.com/maruel/mdnotes/internal/errors"
)

// Export adds every file under the storage root to a, including the git
// metadata so the archive is a complete repository, and returns the
// finalized archive. Entries are named <folder>/<relative path>.
//
// An entry that cannot be read is logged and skipped.
func (s *Store) Export(ctx context.Context, a archive.Archiver) ([]byte, error) {
	const op = "Export"
	log := s.opts.logger()
	bfs := s.st.Filesystem()
	folder := s.opts.exportFolder
	files := 0
	err := util.Walk(bfs, ".", func(p string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.WarnContext(ctx, "notes: export skipping entry", "path", p, "err", err)
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		rel := filepath.ToSlash(p)
		data, err := util.ReadFile(bfs, p)
		if err != nil {
			log.WarnContext(ctx, "notes: export skipping entry", "path", rel, "err", err)
			return nil
		}
		if err := a.AddEntry(path.Join(folder, rel), data); err != nil {
			log.WarnContext(ctx, "notes: export skipping entry", "path", rel, "err", err)
			return nil
		}
		files++
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, apperr.Storage(op, "export interrupted", err))
	}
	out, err := a.Finalize()
	if err != nil {
		return nil, s.fail(ctx, apperr.Storage(op, "failed to finalize archive", err))
	}
	log.DebugContext(ctx, "notes: exported", "files", files, "bytes", len(out))
	return out, nil
}
