package evo

import (
	"fmt"
	"math/rand"
	"sort"
)

// Selector chooses the survivors that form the next population.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, pool Population, k int) (Population, error)
}

// TournamentSelector repeats k times: sample Size members uniformly with
// replacement and keep the lowest fitness, first-encountered on ties.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, pool Population, k int) (Population, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if s.Size < 1 {
		return nil, fmt.Errorf("%w: tournament size must be >= 1 (got %d)", ErrInvalidConfiguration, s.Size)
	}
	if err := checkSelectable(pool, k); err != nil {
		return nil, err
	}
	size := s.Size

	chosen := make(Population, 0, k)
	for n := 0; n < k; n++ {
		best := pool[rng.Intn(len(pool))]
		bestFitness, _ := best.Fitness()
		for i := 1; i < size; i++ {
			candidate := pool[rng.Intn(len(pool))]
			if fitness, _ := candidate.Fitness(); fitness < bestFitness {
				best = candidate
				bestFitness = fitness
			}
		}
		chosen = append(chosen, best.Clone())
	}
	return chosen, nil
}

// TruncationSelector keeps the k lowest-fitness members, cycling through the
// ranking when k exceeds the pool. It draws no randomness.
type TruncationSelector struct{}

func (TruncationSelector) Name() string {
	return "truncation"
}

func (TruncationSelector) Select(_ *rand.Rand, pool Population, k int) (Population, error) {
	if err := checkSelectable(pool, k); err != nil {
		return nil, err
	}
	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		fi, _ := pool[order[i]].Fitness()
		fj, _ := pool[order[j]].Fitness()
		return fi < fj
	})

	chosen := make(Population, 0, k)
	for n := 0; n < k; n++ {
		chosen = append(chosen, pool[order[n%len(order)]].Clone())
	}
	return chosen, nil
}

func checkSelectable(pool Population, k int) error {
	if len(pool) == 0 {
		return fmt.Errorf("selection pool is empty")
	}
	if k <= 0 {
		return fmt.Errorf("invalid selection count: %d", k)
	}
	length := pool[0].Len()
	for i, ind := range pool {
		if ind.Len() != length {
			return fmt.Errorf("%w: member %d has %d genes, want %d", ErrDimensionMismatch, i, ind.Len(), length)
		}
		if _, ok := ind.Fitness(); !ok {
			return fmt.Errorf("member %d has no fitness", i)
		}
	}
	return nil
}

// SelectorByName resolves a selection strategy for configuration surfaces.
func SelectorByName(name string, tournamentSize int) (Selector, error) {
	switch name {
	case "", "tournament":
		if tournamentSize < 1 {
			return nil, fmt.Errorf("%w: tournament size must be >= 1 (got %d)", ErrInvalidConfiguration, tournamentSize)
		}
		return TournamentSelector{Size: tournamentSize}, nil
	case "truncation":
		return TruncationSelector{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown selection strategy %q", ErrInvalidConfiguration, name)
	}
}
