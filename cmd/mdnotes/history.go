package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/mdnotes/internal/notes"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		noteID string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List revisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			var revs []*notes.Revision
			if noteID != "" {
				revs, err = s.NoteHistory(cmd.Context(), noteID)
			} else {
				revs, err = s.History(cmd.Context())
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, revs)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, r := range revs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", shortHash(r.Hash), r.AuthorDate.Local().Format(time.DateTime), r.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&noteID, "note", "", "Only revisions touching this note")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <revision>",
		Short: "Print the legacy " + notes.LegacyPath + " as of a revision",
		Long: `restore only reads the single document used before notes were split.
Use note-at to read a note at a revision.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			content, err := s.Restore(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			return err
		},
	}
}

func newNoteAtCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "note-at <id> <revision>",
		Short: "Print a note as of a revision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			content, err := s.NoteAt(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			return err
		},
	}
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
