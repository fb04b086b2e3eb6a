package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"coverga/internal/dataset"
	"coverga/internal/evo"
	"coverga/internal/model"
	"coverga/internal/platform"
	"coverga/internal/report"
)

func newRunCmd(global *globalFlags) *cobra.Command {
	var (
		data     datasetFlags
		engine   evo.Config
		selector string
		quiet    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one optimization and print the result as JSON",
		Long: `Run loads the dataset, evolves a population and writes the best cover
found as JSON to stdout. Per-generation progress goes to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := global.load(cmd)
			if err != nil {
				return err
			}
			data.apply(cmd, &cfg.Dataset)
			if cfg.Dataset.CoveragePath == "" {
				return errNoDataset
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			evoCfg := cfg.Engine.Evo()
			changed := cmd.Flags().Changed
			if changed("population") {
				evoCfg.PopulationSize = engine.PopulationSize
			}
			if changed("generations") {
				evoCfg.Generations = engine.Generations
			}
			if changed("seed") {
				evoCfg.Seed = engine.Seed
			}
			if changed("cxpb") {
				evoCfg.CrossoverProbability = engine.CrossoverProbability
			}
			if changed("mutpb") {
				evoCfg.MutationProbability = engine.MutationProbability
			}
			if changed("indpb") {
				evoCfg.BitFlipProbability = engine.BitFlipProbability
			}
			if changed("tournsize") {
				evoCfg.TournamentSize = engine.TournamentSize
			}
			if changed("penalty") {
				evoCfg.PenaltyWeight = engine.PenaltyWeight
			}
			if changed("workers") {
				evoCfg.Workers = engine.Workers
			}
			if !changed("selector") {
				selector = cfg.Engine.Selector
			}

			instance, err := dataset.Load(datasetOptions(cfg.Dataset))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			coordinator, closeStore, err := openCoordinator(ctx, cfg, platform.Config{Logger: logger})
			if err != nil {
				return err
			}
			defer closeStore()

			stderr := cmd.ErrOrStderr()
			sink := evo.SinkFunc(func(snapshot model.ProgressSnapshot) {
				if quiet || snapshot.Status != model.StatusRunning {
					return
				}
				fmt.Fprintf(stderr, "generation %d/%d cost=%.2f covered=%d/%d\n",
					snapshot.Generation, snapshot.TotalGenerations,
					report.Round2(snapshot.BestCost), snapshot.ClientsCovered, instance.Clients())
			})
			record, _, err := coordinator.Run(ctx, platform.RunRequest{
				Config:   evoCfg,
				Selector: selector,
				Instance: instance,
				Sink:     sink,
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report.Completed(record))
		},
	}
	defaults := evo.DefaultConfig()
	f := cmd.Flags()
	f.IntVarP(&engine.PopulationSize, "population", "p", defaults.PopulationSize, "population size")
	f.IntVarP(&engine.Generations, "generations", "g", defaults.Generations, "number of generations")
	f.Int64Var(&engine.Seed, "seed", defaults.Seed, "random seed")
	f.Float64Var(&engine.CrossoverProbability, "cxpb", defaults.CrossoverProbability, "crossover probability per pair")
	f.Float64Var(&engine.MutationProbability, "mutpb", defaults.MutationProbability, "mutation probability per individual")
	f.Float64Var(&engine.BitFlipProbability, "indpb", defaults.BitFlipProbability, "bit flip probability per gene")
	f.IntVar(&engine.TournamentSize, "tournsize", defaults.TournamentSize, "tournament size")
	f.Float64Var(&engine.PenaltyWeight, "penalty", evo.DefaultPenaltyWeight, "penalty per uncovered client")
	f.IntVar(&engine.Workers, "workers", defaults.Workers, "parallel fitness evaluations")
	f.StringVar(&selector, "selector", "tournament", "selection strategy: tournament|truncation")
	f.BoolVarP(&quiet, "quiet", "q", false, "suppress per-generation progress")
	data.register(cmd)
	return cmd
}
