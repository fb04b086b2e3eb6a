package main

import (
	"errors"

	"github.com/spf13/cobra"

	"coverga/internal/config"
	"coverga/internal/dataset"
)

var errNoDataset = errors.New("no dataset configured: set --coverage and --cost or dataset.coverage_path in the config")

type datasetFlags struct {
	coveragePath string
	costPath     string
	clients      int
	facilities   int
	costSheet    string
}

func (d *datasetFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&d.coveragePath, "coverage", "", "coverage matrix CSV")
	f.StringVar(&d.costPath, "cost", "", "facility cost file (.xlsx or .csv)")
	f.IntVar(&d.clients, "clients", 0, "client count of a single-column coverage file")
	f.IntVar(&d.facilities, "facilities", 0, "facility count of a single-column coverage file")
	f.StringVar(&d.costSheet, "cost-sheet", "", "workbook sheet holding the costs (first sheet when empty)")
}

func (d *datasetFlags) apply(cmd *cobra.Command, cfg *config.DatasetConfig) {
	changed := cmd.Flags().Changed
	if changed("coverage") {
		cfg.CoveragePath = d.coveragePath
	}
	if changed("cost") {
		cfg.CostPath = d.costPath
	}
	if changed("clients") {
		cfg.Clients = d.clients
	}
	if changed("facilities") {
		cfg.Facilities = d.facilities
	}
	if changed("cost-sheet") {
		cfg.CostSheet = d.costSheet
	}
}

func datasetOptions(cfg config.DatasetConfig) dataset.Options {
	return dataset.Options{
		CoveragePath: cfg.CoveragePath,
		CostPath:     cfg.CostPath,
		Shape:        dataset.Shape{Clients: cfg.Clients, Facilities: cfg.Facilities},
		Cost: dataset.CostOptions{
			Sheet:  cfg.CostSheet,
			Row:    cfg.CostRow,
			Column: cfg.CostColumn,
		},
	}
}
