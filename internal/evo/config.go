package evo

import (
	"errors"
	"fmt"
	"math"

	"coverga/internal/model"
)

var ErrInvalidConfiguration = errors.New("invalid engine configuration")

// DefaultPenaltyWeight is the per-uncovered-client penalty used by the
// service layers. It only orders solutions correctly while it exceeds the total
// cost of every facility, so callers pass it explicitly.
const DefaultPenaltyWeight = 1_000_000

type Config struct {
	PopulationSize       int
	Generations          int
	Seed                 int64
	CrossoverProbability float64
	MutationProbability  float64
	BitFlipProbability   float64
	TournamentSize       int
	PenaltyWeight        float64
	Workers              int
}

// DefaultConfig returns the documented defaults. PenaltyWeight is left unset
// and must be chosen for the instance's cost scale.
func DefaultConfig() Config {
	return Config{
		PopulationSize:       100,
		Generations:          100,
		Seed:                 42,
		CrossoverProbability: 0.5,
		MutationProbability:  0.2,
		BitFlipProbability:   0.01,
		TournamentSize:       3,
		Workers:              1,
	}
}

func (c Config) Validate() error {
	if c.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0 (got %d)", ErrInvalidConfiguration, c.PopulationSize)
	}
	if c.Generations < 0 {
		return fmt.Errorf("%w: generations must be >= 0 (got %d)", ErrInvalidConfiguration, c.Generations)
	}
	if err := checkProbability("crossover probability", c.CrossoverProbability); err != nil {
		return err
	}
	if err := checkProbability("mutation probability", c.MutationProbability); err != nil {
		return err
	}
	if err := checkProbability("bit flip probability", c.BitFlipProbability); err != nil {
		return err
	}
	if c.TournamentSize < 1 {
		return fmt.Errorf("%w: tournament size must be >= 1 (got %d)", ErrInvalidConfiguration, c.TournamentSize)
	}
	if err := checkPenaltyWeight(c.PenaltyWeight); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0 (got %d)", ErrInvalidConfiguration, c.Workers)
	}
	return nil
}

// Record converts c to its persisted form.
func (c Config) Record() model.RunConfig {
	return model.RunConfig{
		PopulationSize:       c.PopulationSize,
		Generations:          c.Generations,
		Seed:                 c.Seed,
		CrossoverProbability: c.CrossoverProbability,
		MutationProbability:  c.MutationProbability,
		BitFlipProbability:   c.BitFlipProbability,
		TournamentSize:       c.TournamentSize,
		PenaltyWeight:        c.PenaltyWeight,
		Workers:              c.Workers,
	}
}

func checkProbability(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %s must be in [0,1] (got %g)", ErrInvalidConfiguration, name, p)
	}
	return nil
}

func checkPenaltyWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return fmt.Errorf("%w: penalty weight must be a finite value > 0 (got %g)", ErrInvalidConfiguration, w)
	}
	return nil
}
