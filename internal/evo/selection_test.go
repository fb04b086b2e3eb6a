package evo

import (
	"errors"
	"math/rand"
	"testing"
)

func TestTournamentSelectorPrefersLowerFitness(t *testing.T) {
	pool := Population{
		scored("000", 9),
		scored("001", 1),
		scored("010", 5),
		scored("011", 7),
	}
	rng := rand.New(rand.NewSource(42))
	chosen, err := TournamentSelector{Size: 3}.Select(rng, pool, 400)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(chosen) != 400 {
		t.Fatalf("expected 400 survivors, got %d", len(chosen))
	}
	counts := map[string]int{}
	for _, ind := range chosen {
		counts[ind.key()]++
	}
	if counts["001"] <= counts["000"] {
		t.Fatalf("expected best member to win more often than worst: %v", counts)
	}
}

func TestTournamentSelectorReturnsCopies(t *testing.T) {
	pool := Population{scored("101", 2)}
	chosen, err := TournamentSelector{Size: 3}.Select(rand.New(rand.NewSource(1)), pool, 3)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	for i, ind := range chosen {
		if ind == pool[0] {
			t.Fatalf("survivor %d aliases the pool member", i)
		}
		if ind.key() != "101" {
			t.Fatalf("degenerate tournament must return the sole member, got %s", ind.key())
		}
		if fitness, ok := ind.Fitness(); !ok || fitness != 2 {
			t.Fatalf("survivor %d lost its fitness", i)
		}
	}
}

func TestTournamentSelectorTieKeepsFirstDrawn(t *testing.T) {
	pool := Population{scored("0", 1), scored("1", 1)}
	for seed := int64(0); seed < 20; seed++ {
		probe := rand.New(rand.NewSource(seed))
		first := probe.Intn(len(pool))

		chosen, err := TournamentSelector{Size: 2}.Select(rand.New(rand.NewSource(seed)), pool, 1)
		if err != nil {
			t.Fatalf("select: %v", err)
		}
		if chosen[0].key() != pool[first].key() {
			t.Fatalf("seed %d: expected first-drawn member %s on tie, got %s", seed, pool[first].key(), chosen[0].key())
		}
	}
}

func TestTruncationSelectorKeepsBestStable(t *testing.T) {
	pool := Population{
		scored("00", 3),
		scored("01", 1),
		scored("10", 1),
		scored("11", 2),
	}
	chosen, err := TruncationSelector{}.Select(nil, pool, 5)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	want := []string{"01", "10", "11", "00", "01"}
	for i, ind := range chosen {
		if ind.key() != want[i] {
			t.Fatalf("position %d: want %s, got %s", i, want[i], ind.key())
		}
	}
}

func TestSelectorsRejectMalformedPools(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := (TournamentSelector{Size: 2}).Select(rng, Population{scored("01", 1), scored("0", 1)}, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := (TournamentSelector{Size: 2}).Select(rng, Population{bits("01")}, 1); err == nil {
		t.Fatal("expected error for unevaluated member")
	}
	if _, err := (TruncationSelector{}).Select(rng, nil, 1); err == nil {
		t.Fatal("expected error for empty pool")
	}
}

func TestSelectorByName(t *testing.T) {
	sel, err := SelectorByName("", 4)
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if ts, ok := sel.(TournamentSelector); !ok || ts.Size != 4 {
		t.Fatalf("expected tournament selector of size 4, got %#v", sel)
	}
	if sel, err := SelectorByName("truncation", 0); err != nil || sel.Name() != "truncation" {
		t.Fatalf("expected truncation selector, got %v, %v", sel, err)
	}
	if _, err := SelectorByName("roulette", 3); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if _, err := SelectorByName("tournament", 0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for size 0, got %v", err)
	}
}

func TestTournamentSelectorRejectsNonPositiveSize(t *testing.T) {
	pool := Population{scored("01", 1), scored("10", 2)}
	for _, size := range []int{0, -2} {
		_, err := TournamentSelector{Size: size}.Select(rand.New(rand.NewSource(1)), pool, 2)
		if !errors.Is(err, ErrInvalidConfiguration) {
			t.Fatalf("size %d: expected ErrInvalidConfiguration, got %v", size, err)
		}
	}
}
