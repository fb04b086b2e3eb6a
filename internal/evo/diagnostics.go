package evo

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"coverga/internal/model"
)

func summarizeGeneration(population Population, generation, evaluations, clients int) model.GenerationDiagnostics {
	if len(population) == 0 {
		return model.GenerationDiagnostics{Generation: generation, Evaluations: evaluations}
	}

	fitness := make([]float64, len(population))
	selected := make([]float64, len(population))
	genotypes := make(map[string]struct{}, len(population))
	feasible := 0
	for i, ind := range population {
		fitness[i], _ = ind.Fitness()
		selected[i] = float64(len(ind.SelectedIndices()))
		genotypes[ind.key()] = struct{}{}
		if covered, ok := ind.Covered(); ok && covered == clients {
			feasible++
		}
	}

	mean, std := stat.MeanStdDev(fitness, nil)
	if len(fitness) < 2 {
		std = 0
	}
	return model.GenerationDiagnostics{
		Generation:        generation,
		BestFitness:       floats.Min(fitness),
		MeanFitness:       mean,
		StdDevFitness:     std,
		WorstFitness:      floats.Max(fitness),
		FeasibleCount:     feasible,
		GenotypeDiversity: len(genotypes),
		MeanSelected:      stat.Mean(selected, nil),
		Evaluations:       evaluations,
	}
}
