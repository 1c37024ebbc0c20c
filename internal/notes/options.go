package notes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/maruel/ksid"

	"github.com/maruel/mdnotes/internal/storage/git"
)

// IDScheme selects how CreateNote names new notes.
type IDScheme string

const (
	// IDTime names notes note-<unix milliseconds>. Collisions within the same
	// millisecond are resolved by bumping the value.
	IDTime IDScheme = "time"
	// IDKSID names notes note-<ksid>, sortable and unique within the process.
	IDKSID IDScheme = "ksid"
)

// DefaultExportFolder is the top level folder of exported archives.
const DefaultExportFolder = "mdnotes-repo"

// Option configures EnsureInitialized and NewStore.
type Option func(*options)

type options struct {
	author       git.Author
	now          func() time.Time
	log          *slog.Logger
	idScheme     IDScheme
	exportFolder string
	clockSet     bool
}

func defaultOptions() options {
	return options{
		author:       git.Author{Name: git.DefaultName, Email: git.DefaultEmail},
		now:          time.Now,
		idScheme:     IDTime,
		exportFolder: DefaultExportFolder,
	}
}

func (o *options) apply(opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
}

func (o *options) logger() *slog.Logger {
	if o.log != nil {
		return o.log
	}
	return slog.Default()
}

// WithAuthor sets the identity recorded on every revision. Empty fields keep
// the default Anonymous <anonymous@localhost>.
func WithAuthor(a git.Author) Option {
	return func(o *options) {
		if a.Name != "" {
			o.author.Name = a.Name
		}
		if a.Email != "" {
			o.author.Email = a.Email
		}
	}
}

// WithClock sets the time source for ids and commit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
			o.clockSet = true
		}
	}
}

// WithLogger sets the logger used to report failures. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithIDScheme selects the note id generator.
func WithIDScheme(s IDScheme) Option {
	return func(o *options) {
		if s != "" {
			o.idScheme = s
		}
	}
}

// WithExportFolder sets the top level folder of exported archives.
func WithExportFolder(name string) Option {
	return func(o *options) {
		if name != "" {
			o.exportFolder = name
		}
	}
}

// newID returns a candidate id for a note created at t. attempt is
// incremented by the caller while the candidate is already taken.
func (o *options) newID(t time.Time, attempt int) (string, error) {
	switch o.idScheme {
	case IDTime:
		return fmt.Sprintf("note-%d", t.UnixMilli()+int64(attempt)), nil
	case IDKSID:
		return "note-" + ksid.NewID().String(), nil
	default:
		return "", fmt.Errorf("unknown id scheme %q", o.idScheme)
	}
}
