package evo

import (
	"errors"
	"math/rand"
	"testing"
)

func TestBitOperatorsInitializeIsSeeded(t *testing.T) {
	ops := BitOperators{Selector: TournamentSelector{Size: 3}}
	a, err := ops.Initialize(rand.New(rand.NewSource(7)), 10, 32)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	b, err := ops.Initialize(rand.New(rand.NewSource(7)), 10, 32)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(a) != 10 {
		t.Fatalf("expected 10 individuals, got %d", len(a))
	}
	ones := 0
	for i := range a {
		if a[i].Len() != 32 {
			t.Fatalf("individual %d has %d genes", i, a[i].Len())
		}
		if a[i].key() != b[i].key() {
			t.Fatalf("individual %d differs between identical seeds", i)
		}
		ones += len(a[i].SelectedIndices())
	}
	if ones == 0 || ones == 320 {
		t.Fatalf("expected a mix of gene values, got %d ones of 320", ones)
	}
}

func TestCrossoverSwapsOneContiguousSegment(t *testing.T) {
	ops := BitOperators{}
	rng := rand.New(rand.NewSource(3))
	parentA := scored("0000000000", 1)
	parentB := scored("1111111111", 2)

	for trial := 0; trial < 200; trial++ {
		childA, childB, err := ops.Crossover(rng, parentA, parentB)
		if err != nil {
			t.Fatalf("crossover: %v", err)
		}
		if childA == parentA || childB == parentB {
			t.Fatal("crossover must return new individuals")
		}
		if _, ok := childA.Fitness(); ok {
			t.Fatal("expected child fitness to be invalidated")
		}

		segment := 0
		transitions := 0
		for j := 0; j < childA.Len(); j++ {
			if childA.Gene(j) == childB.Gene(j) {
				t.Fatalf("children must be complementary at %d", j)
			}
			if childA.Gene(j) {
				segment++
			}
			if j > 0 && childA.Gene(j) != childA.Gene(j-1) {
				transitions++
			}
		}
		if segment == 0 {
			t.Fatal("expected a non-empty swapped segment")
		}
		if transitions > 2 {
			t.Fatalf("expected one contiguous segment, got %s", childA.key())
		}
	}
	if parentA.key() != "0000000000" || parentB.key() != "1111111111" {
		t.Fatal("crossover must not modify parents")
	}
}

func TestCrossoverSingleGene(t *testing.T) {
	childA, childB, err := BitOperators{}.Crossover(rand.New(rand.NewSource(1)), bits("0"), bits("1"))
	if err != nil {
		t.Fatalf("crossover: %v", err)
	}
	if childA.key() != "1" || childB.key() != "0" {
		t.Fatalf("expected full swap for single gene, got %s/%s", childA.key(), childB.key())
	}
}

func TestCrossoverRejectsDimensionMismatch(t *testing.T) {
	_, _, err := BitOperators{}.Crossover(rand.New(rand.NewSource(1)), bits("01"), bits("011"))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestMutateFlipRate(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	genes := make([]bool, 10000)
	parent := NewIndividual(genes)

	none, err := BitOperators{BitFlipProbability: 0}.Mutate(rng, parent)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(none.SelectedIndices()) != 0 {
		t.Fatal("expected no flips at probability 0")
	}

	all, err := BitOperators{BitFlipProbability: 1}.Mutate(rng, parent)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(all.SelectedIndices()) != len(genes) {
		t.Fatal("expected every bit flipped at probability 1")
	}

	some, err := BitOperators{BitFlipProbability: 0.1}.Mutate(rng, parent)
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	flipped := len(some.SelectedIndices())
	if flipped < 800 || flipped > 1200 {
		t.Fatalf("expected about 1000 flips at probability 0.1, got %d", flipped)
	}
	if len(parent.SelectedIndices()) != 0 {
		t.Fatal("mutate must not modify its input")
	}
}

func TestVaryPairsNeighboursThenMutates(t *testing.T) {
	population := Population{
		scored("0000", 1),
		scored("1111", 2),
		scored("0000", 3),
	}
	ops := BitOperators{BitFlipProbability: 0}
	offspring, err := vary(rand.New(rand.NewSource(5)), population, ops, 1, 0)
	if err != nil {
		t.Fatalf("vary: %v", err)
	}
	if len(offspring) != len(population) {
		t.Fatalf("expected %d offspring, got %d", len(population), len(offspring))
	}
	if _, ok := offspring[0].Fitness(); ok {
		t.Fatal("expected crossed offspring to lose fitness")
	}
	if fitness, ok := offspring[2].Fitness(); !ok || fitness != 3 {
		t.Fatal("expected unpaired tail individual to pass through with its fitness")
	}
	if offspring[2] == population[2] {
		t.Fatal("pass-through offspring must be copies")
	}

	mutated, err := vary(rand.New(rand.NewSource(5)), population, ops, 0, 1)
	if err != nil {
		t.Fatalf("vary: %v", err)
	}
	for i, ind := range mutated {
		if _, ok := ind.Fitness(); ok {
			t.Fatalf("expected mutated offspring %d to lose fitness", i)
		}
		if ind.key() != population[i].key() {
			t.Fatalf("zero bit-flip probability must keep genes of %d", i)
		}
	}
}
