package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maruel/mdnotes/internal/config"
	"github.com/maruel/mdnotes/internal/notes"
	"github.com/maruel/mdnotes/internal/storage/git"
	"github.com/maruel/mdnotes/internal/storage/vfs"
)

// app holds the state shared by all subcommands.
type app struct {
	ll *slog.LevelVar

	configFile string
	dataDir    string
	logLevel   string

	cfg        *config.Config
	repo       *notes.Repo
	store      *notes.Store
	migrated   bool
	migrateErr error
}

func newRootCmd(ll *slog.LevelVar) *cobra.Command {
	a := &app{ll: ll}
	root := &cobra.Command{
		Use:   "mdnotes",
		Short: "Versioned markdown notes backed by git",
		Long: `mdnotes stores each note as a markdown file and records every change
as a git commit, so any earlier version can be read back or exported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Configuration file (default $"+config.EnvFile+" or "+config.DefaultFile+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "Storage root, overrides data_dir")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error), overrides log_level")

	root.AddCommand(
		newInitCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newCreateCmd(a),
		newSaveCmd(a),
		newDeleteCmd(a),
		newHistoryCmd(a),
		newRestoreCmd(a),
		newNoteAtCmd(a),
		newExportCmd(a),
		newMigrateCmd(a),
		newWatchCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration file and applies the flag overrides.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(a.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if a.ll != nil {
		a.ll.Set(cfg.Level())
	}
	a.cfg = cfg
	return nil
}

func (a *app) options() []notes.Option {
	return []notes.Option{
		notes.WithAuthor(git.Author{Name: a.cfg.Author.Name, Email: a.cfg.Author.Email}),
		notes.WithIDScheme(notes.IDScheme(a.cfg.IDScheme)),
		notes.WithExportFolder(a.cfg.Export.Folder),
		notes.WithLogger(slog.Default()),
	}
}

// open runs the startup hooks: EnsureInitialized then MigrateIfNeeded.
func (a *app) open(ctx context.Context) (*notes.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	opts := a.options()
	repo, err := notes.EnsureInitialized(ctx, vfs.NewOS(a.cfg.DataDir), opts...)
	if err != nil {
		return nil, err
	}
	s := notes.NewStore(repo, opts...)
	// A failed migration is logged by the store and leaves the notes usable.
	a.migrated, a.migrateErr = s.MigrateIfNeeded(ctx)
	a.repo = repo
	a.store = s
	return s, nil
}
