// Package dataset loads set-cover problem instances from coverage and cost
// files and can watch them for changes.
package dataset

import (
	"coverga/internal/problem"
)

type Options struct {
	CoveragePath string
	CostPath     string
	Shape        Shape
	Cost         CostOptions
}

// Load reads both files and builds the instance. The cost count defaults to
// the coverage matrix's facility count.
func Load(opts Options) (*problem.Instance, error) {
	coverage, err := LoadCoverage(opts.CoveragePath, opts.Shape)
	if err != nil {
		return nil, err
	}
	costOpts := opts.Cost
	if costOpts.Count == 0 {
		costOpts.Count = len(coverage[0])
	}
	cost, err := LoadCost(opts.CostPath, costOpts)
	if err != nil {
		return nil, err
	}
	return problem.NewInstance(coverage, cost)
}
