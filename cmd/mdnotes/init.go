package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maruel/mdnotes/internal/notes"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the storage root and its history if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.repo.Created() {
				fmt.Fprintf(out, "Initialized %s\n", a.repo.Storage())
			} else {
				fmt.Fprintf(out, "%s is already initialized\n", a.repo.Storage())
			}
			return nil
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move a legacy " + notes.LegacyPath + " into " + notes.NotesDir + "/" + notes.MigratedID + ".md",
		Long: `Migration also runs before every other command. This command only
reports whether it happened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.open(cmd.Context()); err != nil {
				return err
			}
			if a.migrateErr != nil {
				return a.migrateErr
			}
			if a.migrated {
				fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s to %s\n", notes.LegacyPath, notes.MigratedID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate")
			}
			return nil
		},
	}
}
