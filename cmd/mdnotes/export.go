package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maruel/mdnotes/internal/archive"
)

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the whole repository, history included, as a zip file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			data, err := s.Export(cmd.Context(), archive.NewZip())
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = a.cfg.Export.Folder + ".zip"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil { //nolint:gosec // G306: archives are meant to be shared
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			slog.InfoContext(cmd.Context(), "Exported", "file", output, "bytes", len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", `Destination file, "-" for stdout (default <export.folder>.zip)`)
	return cmd
}
