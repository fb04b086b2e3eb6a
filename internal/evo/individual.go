package evo

import (
	"errors"
	"fmt"
)

var ErrDimensionMismatch = errors.New("gene vector dimension mismatch")

// Individual is a candidate selection: gene j set means facility j is chosen.
// Fitness is cached until a gene changes.
type Individual struct {
	genes        []bool
	fitness      float64
	covered      int
	fitnessValid bool
}

func NewIndividual(genes []bool) *Individual {
	return &Individual{genes: append([]bool(nil), genes...)}
}

func (ind *Individual) Len() int {
	return len(ind.genes)
}

func (ind *Individual) Gene(j int) bool {
	return ind.genes[j]
}

func (ind *Individual) SetGene(j int, value bool) {
	if ind.genes[j] == value {
		return
	}
	ind.genes[j] = value
	ind.fitnessValid = false
}

func (ind *Individual) FlipGene(j int) {
	ind.genes[j] = !ind.genes[j]
	ind.fitnessValid = false
}

// Genes returns a copy of the gene vector.
func (ind *Individual) Genes() []bool {
	return append([]bool(nil), ind.genes...)
}

// Fitness reports the cached fitness and whether it is current.
func (ind *Individual) Fitness() (float64, bool) {
	return ind.fitness, ind.fitnessValid
}

// SetFitness caches a fitness computed outside an Evaluator; the covered
// client count becomes unknown.
func (ind *Individual) SetFitness(value float64) {
	ind.setEvaluation(value, -1)
}

// Covered reports the cached covered-client count. It is only known when the
// fitness came from an Evaluator and is still current.
func (ind *Individual) Covered() (int, bool) {
	return ind.covered, ind.fitnessValid && ind.covered >= 0
}

func (ind *Individual) setEvaluation(fitness float64, covered int) {
	ind.fitness = fitness
	ind.covered = covered
	ind.fitnessValid = true
}

func (ind *Individual) InvalidateFitness() {
	ind.fitnessValid = false
}

// Clone returns an independent copy carrying the same cached fitness.
func (ind *Individual) Clone() *Individual {
	return &Individual{
		genes:        append([]bool(nil), ind.genes...),
		fitness:      ind.fitness,
		covered:      ind.covered,
		fitnessValid: ind.fitnessValid,
	}
}

// SelectedIndices lists the chosen facilities in ascending order.
func (ind *Individual) SelectedIndices() []int {
	out := make([]int, 0, len(ind.genes))
	for j, on := range ind.genes {
		if on {
			out = append(out, j)
		}
	}
	return out
}

func (ind *Individual) key() string {
	buf := make([]byte, len(ind.genes))
	for j, on := range ind.genes {
		if on {
			buf[j] = '1'
		} else {
			buf[j] = '0'
		}
	}
	return string(buf)
}

type Population []*Individual

// Clone deep-copies every member.
func (p Population) Clone() Population {
	out := make(Population, len(p))
	for i, ind := range p {
		out[i] = ind.Clone()
	}
	return out
}

// Best returns the index of the lowest-fitness member; the lowest index wins
// ties. Every member must carry a valid fitness.
func (p Population) Best() (int, error) {
	if len(p) == 0 {
		return -1, errors.New("empty population")
	}
	best := -1
	bestFitness := 0.0
	for i, ind := range p {
		fitness, ok := ind.Fitness()
		if !ok {
			return -1, fmt.Errorf("individual %d has no fitness", i)
		}
		if best < 0 || fitness < bestFitness {
			best = i
			bestFitness = fitness
		}
	}
	return best, nil
}

func checkSameLength(a, b *Individual) error {
	if a.Len() != b.Len() {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, a.Len(), b.Len())
	}
	return nil
}
