package problem

import (
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
)

var ErrInvalidInstance = errors.New("invalid problem instance")

// Instance is one immutable set-cover problem: which facilities cover which
// clients, and what each facility costs.
type Instance struct {
	clients    int
	facilities int
	coverage   [][]bool
	cost       []float64
	columns    []*bitset.BitSet
	totalCost  float64
}

// NewInstance copies coverage (rows are clients, columns are facilities) and
// cost into a read-only Instance.
func NewInstance(coverage [][]bool, cost []float64) (*Instance, error) {
	if len(coverage) == 0 {
		return nil, fmt.Errorf("%w: coverage matrix has no rows", ErrInvalidInstance)
	}
	facilities := len(coverage[0])
	if facilities == 0 {
		return nil, fmt.Errorf("%w: coverage matrix has no columns", ErrInvalidInstance)
	}
	for i, row := range coverage {
		if len(row) != facilities {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidInstance, i, len(row), facilities)
		}
	}
	if len(cost) != facilities {
		return nil, fmt.Errorf("%w: cost vector length %d does not match %d facilities", ErrInvalidInstance, len(cost), facilities)
	}

	total := 0.0
	for j, c := range cost {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: cost[%d] is not finite", ErrInvalidInstance, j)
		}
		if c < 0 {
			return nil, fmt.Errorf("%w: cost[%d] is negative (%g)", ErrInvalidInstance, j, c)
		}
		total += c
	}

	clients := len(coverage)
	rows := make([][]bool, clients)
	columns := make([]*bitset.BitSet, facilities)
	for j := range columns {
		columns[j] = bitset.New(uint(clients))
	}
	for i, row := range coverage {
		rows[i] = append([]bool(nil), row...)
		for j, covered := range row {
			if covered {
				columns[j].Set(uint(i))
			}
		}
	}

	return &Instance{
		clients:    clients,
		facilities: facilities,
		coverage:   rows,
		cost:       append([]float64(nil), cost...),
		columns:    columns,
		totalCost:  total,
	}, nil
}

func (in *Instance) Clients() int {
	return in.clients
}

func (in *Instance) Facilities() int {
	return in.facilities
}

func (in *Instance) Covers(client, facility int) bool {
	return in.coverage[client][facility]
}

func (in *Instance) Cost(facility int) float64 {
	return in.cost[facility]
}

// TotalCost is the cost of selecting every facility, the upper bound of any
// selection's unpenalized cost.
func (in *Instance) TotalCost() float64 {
	return in.totalCost
}

// CoveredBy returns the clients covered by facility as a bitset. Callers must
// not modify it.
func (in *Instance) CoveredBy(facility int) *bitset.BitSet {
	return in.columns[facility]
}

// CoverableClients counts clients covered by at least one facility. When it is
// below Clients() no selection can be feasible.
func (in *Instance) CoverableClients() int {
	union := bitset.New(uint(in.clients))
	for _, column := range in.columns {
		union.InPlaceUnion(column)
	}
	return int(union.Count())
}
