package evo

import (
	"math/rand"
	"testing"

	"coverga/internal/problem"
)

func mustInstance(t *testing.T, coverage [][]bool, cost []float64) *problem.Instance {
	t.Helper()
	inst, err := problem.NewInstance(coverage, cost)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	return inst
}

// randomInstance builds a clients x facilities instance in which every client
// is covered by at least one facility.
func randomInstance(t *testing.T, seed int64, clients, facilities int) *problem.Instance {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	coverage := make([][]bool, clients)
	for i := range coverage {
		row := make([]bool, facilities)
		for j := range row {
			row[j] = rng.Float64() < 0.15
		}
		row[rng.Intn(facilities)] = true
		coverage[i] = row
	}
	cost := make([]float64, facilities)
	for j := range cost {
		cost[j] = float64(1 + rng.Intn(50))
	}
	return mustInstance(t, coverage, cost)
}

func bits(s string) *Individual {
	genes := make([]bool, len(s))
	for i, c := range s {
		genes[i] = c == '1'
	}
	return NewIndividual(genes)
}

func scored(s string, fitness float64) *Individual {
	ind := bits(s)
	ind.SetFitness(fitness)
	return ind
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PenaltyWeight = DefaultPenaltyWeight
	return cfg
}
