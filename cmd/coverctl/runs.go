package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"coverga/internal/platform"
	"coverga/internal/report"
)

func newRunsCmd(global *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			coordinator, closeStore, err := openCoordinator(cmd.Context(), cfg, platform.Config{Logger: logger})
			if err != nil {
				return err
			}
			defer closeStore()

			runs, err := coordinator.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(runs) > limit {
				runs = runs[len(runs)-limit:]
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tGENERATIONS\tCOST\tCOVERED")
			for _, run := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.2f\t%d/%d\n",
					run.ID, run.Status, run.CreatedAtUTC,
					run.GenerationsCompleted, run.Config.Generations,
					report.Round2(run.TotalCost), run.ClientsCovered, run.Clients)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the most recent runs")
	return cmd
}

func newShowCmd(global *globalFlags) *cobra.Command {
	var withProgress bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			coordinator, closeStore, err := openCoordinator(cmd.Context(), cfg, platform.Config{Logger: logger})
			if err != nil {
				return err
			}
			defer closeStore()

			run, err := coordinator.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"run": run}
			if withProgress {
				snapshots, err := coordinator.Progress(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				out["progress"] = snapshots
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&withProgress, "progress", false, "include the snapshot history")
	return cmd
}

func newChartCmd(global *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "chart <run-id>",
		Short: "Render a run's convergence chart as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			coordinator, closeStore, err := openCoordinator(cmd.Context(), cfg, platform.Config{Logger: logger})
			if err != nil {
				return err
			}
			defer closeStore()

			run, err := coordinator.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			diagnostics, err := coordinator.Diagnostics(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				return report.WriteChart(cmd.OutOrStdout(), run, diagnostics)
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := report.WriteChart(f, run, diagnostics); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Info("chart written", "run_id", run.ID, "path", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "HTML output file (stdout when empty)")
	return cmd
}
