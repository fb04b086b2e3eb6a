package evo

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"coverga/internal/problem"
)

// Evaluator scores individuals against one instance: selected cost plus
// PenaltyWeight per uncovered client. Lower is better. An Evaluator is safe
// for concurrent use on distinct individuals.
type Evaluator struct {
	instance      *problem.Instance
	penaltyWeight float64
}

func NewEvaluator(instance *problem.Instance, penaltyWeight float64) (*Evaluator, error) {
	if instance == nil {
		return nil, fmt.Errorf("problem instance is required")
	}
	if err := checkPenaltyWeight(penaltyWeight); err != nil {
		return nil, err
	}
	return &Evaluator{instance: instance, penaltyWeight: penaltyWeight}, nil
}

func (e *Evaluator) PenaltyWeight() float64 {
	return e.penaltyWeight
}

// Evaluate returns the penalized cost of ind without touching its cache.
func (e *Evaluator) Evaluate(ind *Individual) (float64, error) {
	fitness, _, err := e.Assess(ind)
	return fitness, err
}

// Assess returns the penalized cost together with the covered-client count.
func (e *Evaluator) Assess(ind *Individual) (float64, int, error) {
	selectedCost, covered, err := e.score(ind)
	if err != nil {
		return 0, 0, err
	}
	uncovered := e.instance.Clients() - covered
	return selectedCost + float64(uncovered)*e.penaltyWeight, covered, nil
}

// Apply evaluates ind and caches the outcome on it.
func (e *Evaluator) Apply(ind *Individual) error {
	fitness, covered, err := e.Assess(ind)
	if err != nil {
		return err
	}
	ind.setEvaluation(fitness, covered)
	return nil
}

// Coverage counts clients covered by at least one selected facility.
func (e *Evaluator) Coverage(ind *Individual) (int, error) {
	_, covered, err := e.score(ind)
	return covered, err
}

// SelectedCost is the unpenalized cost of ind's selection.
func (e *Evaluator) SelectedCost(ind *Individual) (float64, error) {
	cost, _, err := e.score(ind)
	return cost, err
}

func (e *Evaluator) score(ind *Individual) (float64, int, error) {
	if ind.Len() != e.instance.Facilities() {
		return 0, 0, fmt.Errorf("%w: individual has %d genes, instance has %d facilities",
			ErrDimensionMismatch, ind.Len(), e.instance.Facilities())
	}

	union := bitset.New(uint(e.instance.Clients()))
	total := 0.0
	for j := 0; j < ind.Len(); j++ {
		if !ind.Gene(j) {
			continue
		}
		total += e.instance.Cost(j)
		union.InPlaceUnion(e.instance.CoveredBy(j))
	}
	return total, int(union.Count()), nil
}
