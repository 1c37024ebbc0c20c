package main

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maruel/mdnotes/internal/notes"
	"github.com/maruel/mdnotes/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Record edits made to note files by other programs",
		Long: `watch runs until interrupted. Each settled change to a notes/*.md file
becomes an "Update note" revision. Files removed by other programs are
reported but not recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			w := watch.New(s, filepath.Join(a.cfg.DataDir, notes.NotesDir), watch.Options{
				Debounce: a.cfg.Watch.Debounce.Std(),
				Logger:   slog.Default(),
			})
			return w.Run(cmd.Context())
		},
	}
}
