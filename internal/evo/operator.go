package evo

import (
	"fmt"
	"math/rand"
)

// Operators is the capability set the engine needs to evolve a population.
// Every method draws randomness only from the supplied rng, so a run is
// reproducible from its seed.
type Operators interface {
	Initialize(rng *rand.Rand, size, length int) (Population, error)
	Crossover(rng *rand.Rand, a, b *Individual) (*Individual, *Individual, error)
	Mutate(rng *rand.Rand, ind *Individual) (*Individual, error)
	Select(rng *rand.Rand, pool Population, k int) (Population, error)
}

// BitOperators implements uniform bit initialization, two-point crossover,
// independent bit-flip mutation and delegates survivor selection to Selector.
type BitOperators struct {
	BitFlipProbability float64
	Selector           Selector
}

func NewBitOperators(bitFlipProbability float64, selector Selector) (BitOperators, error) {
	if err := checkProbability("bit flip probability", bitFlipProbability); err != nil {
		return BitOperators{}, err
	}
	if selector == nil {
		return BitOperators{}, fmt.Errorf("%w: selector is required", ErrInvalidConfiguration)
	}
	return BitOperators{BitFlipProbability: bitFlipProbability, Selector: selector}, nil
}

func (BitOperators) Initialize(rng *rand.Rand, size, length int) (Population, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if size <= 0 || length <= 0 {
		return nil, fmt.Errorf("invalid population shape: size=%d length=%d", size, length)
	}
	population := make(Population, size)
	for i := range population {
		genes := make([]bool, length)
		for j := range genes {
			genes[j] = rng.Intn(2) == 1
		}
		population[i] = &Individual{genes: genes}
	}
	return population, nil
}

// Crossover swaps the segment [a, b) between copies of the parents, with
// 0 <= a < b <= length drawn uniformly over distinct cut pairs.
func (BitOperators) Crossover(rng *rand.Rand, a, b *Individual) (*Individual, *Individual, error) {
	if rng == nil {
		return nil, nil, fmt.Errorf("random source is required")
	}
	if err := checkSameLength(a, b); err != nil {
		return nil, nil, err
	}
	length := a.Len()
	if length == 0 {
		return a.Clone(), b.Clone(), nil
	}

	lo := rng.Intn(length + 1)
	hi := rng.Intn(length)
	if hi >= lo {
		hi++
	} else {
		lo, hi = hi, lo
	}

	first := a.Clone()
	second := b.Clone()
	for j := lo; j < hi; j++ {
		first.genes[j], second.genes[j] = second.genes[j], first.genes[j]
	}
	first.InvalidateFitness()
	second.InvalidateFitness()
	return first, second, nil
}

func (o BitOperators) Mutate(rng *rand.Rand, ind *Individual) (*Individual, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	out := ind.Clone()
	for j := range out.genes {
		if rng.Float64() < o.BitFlipProbability {
			out.FlipGene(j)
		}
	}
	out.InvalidateFitness()
	return out, nil
}

func (o BitOperators) Select(rng *rand.Rand, pool Population, k int) (Population, error) {
	if o.Selector == nil {
		return nil, fmt.Errorf("selector is required")
	}
	return o.Selector.Select(rng, pool, k)
}
