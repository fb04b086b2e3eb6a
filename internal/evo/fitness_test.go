package evo

import (
	"errors"
	"testing"
)

func TestEvaluatorCostPlusPenalty(t *testing.T) {
	inst := mustInstance(t, [][]bool{
		{true, true, false},
		{true, false, false},
		{false, false, true},
	}, []float64{5, 1, 2})
	ev, err := NewEvaluator(inst, 1000)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}

	cases := []struct {
		genes   string
		fitness float64
		covered int
	}{
		{genes: "000", fitness: 3000, covered: 0},
		{genes: "100", fitness: 5 + 1000, covered: 2},
		{genes: "010", fitness: 1 + 2000, covered: 1},
		{genes: "101", fitness: 7, covered: 3},
		{genes: "111", fitness: 8, covered: 3},
	}
	for _, tc := range cases {
		fitness, covered, err := ev.Assess(bits(tc.genes))
		if err != nil {
			t.Fatalf("assess %s: %v", tc.genes, err)
		}
		if fitness != tc.fitness || covered != tc.covered {
			t.Fatalf("assess %s: got fitness=%g covered=%d, want fitness=%g covered=%d",
				tc.genes, fitness, covered, tc.fitness, tc.covered)
		}
	}
}

func TestEvaluatorCoverageIsUnionNotCount(t *testing.T) {
	inst := mustInstance(t, [][]bool{
		{true, true},
		{false, false},
	}, []float64{1, 1})
	ev, err := NewEvaluator(inst, 10)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	covered, err := ev.Coverage(bits("11"))
	if err != nil {
		t.Fatalf("coverage: %v", err)
	}
	if covered != 1 {
		t.Fatalf("expected doubly covered client to count once, got %d", covered)
	}
}

func TestEvaluatorApplyCachesFitness(t *testing.T) {
	inst := mustInstance(t, [][]bool{{true, false}}, []float64{4, 9})
	ev, err := NewEvaluator(inst, 100)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	ind := bits("10")
	if err := ev.Apply(ind); err != nil {
		t.Fatalf("apply: %v", err)
	}
	fitness, ok := ind.Fitness()
	if !ok || fitness != 4 {
		t.Fatalf("expected cached fitness 4, got %g (valid=%v)", fitness, ok)
	}
	if covered, ok := ind.Covered(); !ok || covered != 1 {
		t.Fatalf("expected cached coverage 1, got %d (valid=%v)", covered, ok)
	}

	ind.FlipGene(1)
	if _, ok := ind.Fitness(); ok {
		t.Fatal("expected gene change to invalidate fitness")
	}
}

func TestEvaluatorRejectsDimensionMismatch(t *testing.T) {
	inst := mustInstance(t, [][]bool{{true, false}}, []float64{1, 1})
	ev, err := NewEvaluator(inst, 100)
	if err != nil {
		t.Fatalf("new evaluator: %v", err)
	}
	if _, err := ev.Evaluate(bits("101")); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestNewEvaluatorRequiresPenaltyWeight(t *testing.T) {
	inst := mustInstance(t, [][]bool{{true}}, []float64{1})
	for _, w := range []float64{0, -1} {
		if _, err := NewEvaluator(inst, w); !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("penalty %g: expected ErrInvalidConfiguration, got %v", w, err)
		}
	}
}
