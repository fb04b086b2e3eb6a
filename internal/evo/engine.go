package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"coverga/internal/model"
	"coverga/internal/problem"
)

var ErrEngineBusy = errors.New("engine is already running")

type State int32

const (
	StateInitialized State = iota
	StateRunning
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ProgressSink receives snapshots at generation boundaries. Publish must not
// block the caller.
type ProgressSink interface {
	Publish(snapshot model.ProgressSnapshot)
}

type SinkFunc func(model.ProgressSnapshot)

func (f SinkFunc) Publish(snapshot model.ProgressSnapshot) { f(snapshot) }

type Result struct {
	TotalCost       float64
	SelectedIndices []int
	ClientsCovered  int
	TotalClients    int
	// Generations is the number of generations completed, lower than the
	// configured count when the run was cancelled.
	Generations      int
	Cancelled        bool
	Best             *Individual
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	Evaluations      int
}

type Engine struct {
	cfg    Config
	ops    Operators
	logger *slog.Logger
	state  atomic.Int32
}

// NewEngine validates cfg and binds the operator set. A nil ops uses
// BitOperators with tournament selection configured from cfg.
func NewEngine(cfg Config, ops Operators, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if ops == nil {
		bitOps, err := NewBitOperators(cfg.BitFlipProbability, TournamentSelector{Size: cfg.TournamentSize})
		if err != nil {
			return nil, err
		}
		ops = bitOps
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{cfg: cfg, ops: ops, logger: logger}, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Run evolves a fresh population against instance. Cancelling ctx stops the
// loop at the next generation boundary and returns the best result so far
// with Cancelled set; it is not reported as an error. The completed snapshot
// is always published to sink.
func (e *Engine) Run(ctx context.Context, instance *problem.Instance, sink ProgressSink) (Result, error) {
	if instance == nil {
		return Result{}, fmt.Errorf("%w: instance is required", problem.ErrInvalidInstance)
	}
	if !e.state.CompareAndSwap(int32(StateInitialized), int32(StateRunning)) &&
		!e.state.CompareAndSwap(int32(StateCompleted), int32(StateRunning)) {
		return Result{}, ErrEngineBusy
	}
	if sink == nil {
		sink = SinkFunc(func(model.ProgressSnapshot) {})
	}

	result, err := e.run(ctx, instance, sink)
	if err != nil {
		e.state.Store(int32(StateInitialized))
		return Result{}, err
	}
	e.state.Store(int32(StateCompleted))
	return result, nil
}

func (e *Engine) run(ctx context.Context, instance *problem.Instance, sink ProgressSink) (Result, error) {
	evaluator, err := NewEvaluator(instance, e.cfg.PenaltyWeight)
	if err != nil {
		return Result{}, err
	}
	rng := rand.New(rand.NewSource(e.cfg.Seed))

	population, err := e.ops.Initialize(rng, e.cfg.PopulationSize, instance.Facilities())
	if err != nil {
		return Result{}, fmt.Errorf("initialize population: %w", err)
	}
	if len(population) != e.cfg.PopulationSize {
		return Result{}, fmt.Errorf("initial population mismatch: got=%d want=%d", len(population), e.cfg.PopulationSize)
	}
	evaluations, err := e.evaluate(context.WithoutCancel(ctx), evaluator, population)
	if err != nil {
		return Result{}, err
	}

	tracker := bestTracker{evaluator: evaluator}
	if err := tracker.observe(population); err != nil {
		return Result{}, err
	}

	bestHistory := make([]float64, 0, e.cfg.Generations)
	diagnostics := make([]model.GenerationDiagnostics, 0, e.cfg.Generations+1)
	diagnostics = append(diagnostics, summarizeGeneration(population, 0, evaluations, instance.Clients()))

	completed := 0
	cancelled := false
	for gen := 1; gen <= e.cfg.Generations; gen++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		offspring, err := vary(rng, population, e.ops, e.cfg.CrossoverProbability, e.cfg.MutationProbability)
		if err != nil {
			return Result{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		n, err := e.evaluate(ctx, evaluator, offspring)
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			return Result{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		evaluations += n

		next, err := e.ops.Select(rng, offspring, e.cfg.PopulationSize)
		if err != nil {
			return Result{}, fmt.Errorf("generation %d: select: %w", gen, err)
		}
		if len(next) != e.cfg.PopulationSize {
			return Result{}, fmt.Errorf("generation %d: selected %d individuals, want %d", gen, len(next), e.cfg.PopulationSize)
		}
		population = next

		generationBest, err := population.Best()
		if err != nil {
			return Result{}, fmt.Errorf("generation %d: %w", gen, err)
		}
		if err := tracker.observe(population); err != nil {
			return Result{}, err
		}
		completed = gen
		bestHistory = append(bestHistory, tracker.cost)
		diagnostics = append(diagnostics, summarizeGeneration(population, gen, n, instance.Clients()))

		generationCost, _ := population[generationBest].Fitness()
		sink.Publish(model.ProgressSnapshot{
			Generation:         gen,
			TotalGenerations:   e.cfg.Generations,
			BestCost:           tracker.cost,
			ClientsCovered:     tracker.covered,
			GenerationBestCost: generationCost,
			Status:             model.StatusRunning,
		})
		e.logger.Debug("generation complete",
			"generation", gen,
			"best_cost", tracker.cost,
			"generation_best_cost", generationCost,
			"clients_covered", tracker.covered,
		)
	}

	result := Result{
		TotalCost:        tracker.cost,
		SelectedIndices:  tracker.best.SelectedIndices(),
		ClientsCovered:   tracker.covered,
		TotalClients:     instance.Clients(),
		Generations:      completed,
		Cancelled:        cancelled,
		Best:             tracker.best.Clone(),
		BestByGeneration: bestHistory,
		Diagnostics:      diagnostics,
		Evaluations:      evaluations,
	}
	sink.Publish(model.ProgressSnapshot{
		Generation:         completed,
		TotalGenerations:   e.cfg.Generations,
		BestCost:           result.TotalCost,
		ClientsCovered:     result.ClientsCovered,
		GenerationBestCost: tracker.lastGenerationCost,
		Status:             model.StatusCompleted,
	})
	return result, nil
}

// evaluate scores every member without a current fitness and returns how many
// were scored. Each worker writes only to its own member, so the outcome does
// not depend on the worker count.
func (e *Engine) evaluate(ctx context.Context, evaluator *Evaluator, population Population) (int, error) {
	pending := make([]int, 0, len(population))
	for i, ind := range population {
		if _, ok := ind.Fitness(); !ok {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	workers := e.cfg.Workers
	if workers <= 1 || len(pending) == 1 {
		for _, i := range pending {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if err := evaluator.Apply(population[i]); err != nil {
				return 0, fmt.Errorf("evaluate individual %d: %w", i, err)
			}
		}
		return len(pending), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, i := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := evaluator.Apply(population[i]); err != nil {
				return fmt.Errorf("evaluate individual %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// bestTracker keeps the best individual seen across all generations. It only
// moves on strict improvement, so the reported cost never increases.
type bestTracker struct {
	evaluator          *Evaluator
	best               *Individual
	cost               float64
	covered            int
	lastGenerationCost float64
}

func (t *bestTracker) observe(population Population) error {
	idx, err := population.Best()
	if err != nil {
		return err
	}
	candidate := population[idx]
	fitness, _ := candidate.Fitness()
	t.lastGenerationCost = fitness
	if t.best != nil && fitness >= t.cost {
		return nil
	}

	covered, ok := candidate.Covered()
	if !ok {
		covered, err = t.evaluator.Coverage(candidate)
		if err != nil {
			return err
		}
	}
	t.best = candidate.Clone()
	t.cost = fitness
	t.covered = covered
	return nil
}
