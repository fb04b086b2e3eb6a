package evo

import (
	"fmt"
	"math/rand"
)

// vary produces offspring from a copy of population: crossover on consecutive
// pairs with probability cxpb, then mutation of each offspring with
// probability mutpb. Offspring touched by either operator lose their fitness.
func vary(rng *rand.Rand, population Population, ops Operators, cxpb, mutpb float64) (Population, error) {
	offspring := population.Clone()

	for i := 1; i < len(offspring); i += 2 {
		if rng.Float64() >= cxpb {
			continue
		}
		a, b, err := ops.Crossover(rng, offspring[i-1], offspring[i])
		if err != nil {
			return nil, fmt.Errorf("crossover %d/%d: %w", i-1, i, err)
		}
		a.InvalidateFitness()
		b.InvalidateFitness()
		offspring[i-1], offspring[i] = a, b
	}

	for i := range offspring {
		if rng.Float64() >= mutpb {
			continue
		}
		mutated, err := ops.Mutate(rng, offspring[i])
		if err != nil {
			return nil, fmt.Errorf("mutate %d: %w", i, err)
		}
		mutated.InvalidateFitness()
		offspring[i] = mutated
	}

	return offspring, nil
}
