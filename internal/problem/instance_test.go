package problem

import (
	"errors"
	"math"
	"testing"
)

func TestNewInstanceAccessors(t *testing.T) {
	inst, err := NewInstance([][]bool{
		{true, true, false},
		{true, false, false},
	}, []float64{5, 1, 2})
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	if inst.Clients() != 2 || inst.Facilities() != 3 {
		t.Fatalf("unexpected dimensions: clients=%d facilities=%d", inst.Clients(), inst.Facilities())
	}
	if !inst.Covers(1, 0) || inst.Covers(1, 1) {
		t.Fatal("unexpected coverage lookup")
	}
	if inst.Cost(2) != 2 || inst.TotalCost() != 8 {
		t.Fatalf("unexpected cost lookup: cost[2]=%g total=%g", inst.Cost(2), inst.TotalCost())
	}
	if got := inst.CoveredBy(0).Count(); got != 2 {
		t.Fatalf("expected facility 0 to cover 2 clients, got %d", got)
	}
	if got := inst.CoverableClients(); got != 2 {
		t.Fatalf("expected 2 coverable clients, got %d", got)
	}
}

func TestNewInstanceCopiesInputs(t *testing.T) {
	coverage := [][]bool{{true}}
	cost := []float64{3}
	inst, err := NewInstance(coverage, cost)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	coverage[0][0] = false
	cost[0] = 99
	if !inst.Covers(0, 0) || inst.Cost(0) != 3 {
		t.Fatal("instance must not alias caller slices")
	}
}

func TestNewInstanceRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name     string
		coverage [][]bool
		cost     []float64
	}{
		{name: "no rows", coverage: nil, cost: []float64{1}},
		{name: "no columns", coverage: [][]bool{{}}, cost: nil},
		{name: "ragged", coverage: [][]bool{{true, false}, {true}}, cost: []float64{1, 1}},
		{name: "cost length", coverage: [][]bool{{true, false}}, cost: []float64{1}},
		{name: "negative cost", coverage: [][]bool{{true}}, cost: []float64{-1}},
		{name: "nan cost", coverage: [][]bool{{true}}, cost: []float64{math.NaN()}},
		{name: "inf cost", coverage: [][]bool{{true}}, cost: []float64{math.Inf(1)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewInstance(tc.coverage, tc.cost)
			if !errors.Is(err, ErrInvalidInstance) {
				t.Fatalf("expected ErrInvalidInstance, got %v", err)
			}
		})
	}
}
