package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coverga/internal/platform"
	"coverga/internal/stats"
)

const exportsDir = "exports"

func newExportCmd(global *globalFlags) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write a stored run's record, history and cost series to disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			coordinator, closeStore, err := openCoordinator(ctx, cfg, platform.Config{Logger: logger})
			if err != nil {
				return err
			}
			defer closeStore()

			run, err := coordinator.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			progress, err := coordinator.Progress(ctx, run.ID)
			if err != nil {
				return err
			}
			diagnostics, err := coordinator.Diagnostics(ctx, run.ID)
			if err != nil {
				return err
			}

			runDir, err := stats.WriteRunArtifacts(dir, stats.RunArtifacts{
				Run:         run,
				Progress:    progress,
				Diagnostics: diagnostics,
			})
			if err != nil {
				return err
			}
			if err := stats.AppendRunIndex(dir, stats.IndexEntry(run)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), runDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", exportsDir, "export base directory")
	return cmd
}
