// Package colmap maps tuples between their natural column order (for example
// SPO) and the physical order of one index (for example POS).
//
// Labels are parsed once at construction; mapping uses only the integer
// permutation arrays.
package colmap

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/internal/tuple"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// ColumnMap is an immutable permutation between logical and physical slots.
type ColumnMap struct {
	label string
	// toPhysical[i] is the physical slot holding logical column i
	toPhysical []int
	// toLogical[j] is the logical column stored in physical slot j
	toLogical []int
}

// New builds the column map taking natural order to physical order, one
// label per character, e.g. New("SPO", "POS").
func New(natural, physical string) (*ColumnMap, error) {
	if len(natural) != len(physical) {
		return nil, fmt.Errorf("%w: column map %s->%s: lengths differ", store.ErrConfig, natural, physical)
	}
	if len(natural) == 0 || len(natural) > tuple.MaxArity {
		return nil, fmt.Errorf("%w: column map %s->%s: arity %d out of range", store.ErrConfig, natural, physical, len(natural))
	}

	logicalPos := make(map[byte]int, len(natural))
	for i := 0; i < len(natural); i++ {
		if _, dup := logicalPos[natural[i]]; dup {
			return nil, fmt.Errorf("%w: column map %s->%s: label %q repeats", store.ErrConfig, natural, physical, natural[i])
		}
		logicalPos[natural[i]] = i
	}

	toPhysical := make([]int, len(natural))
	toLogical := make([]int, len(natural))
	seen := make(map[byte]bool, len(physical))
	for j := 0; j < len(physical); j++ {
		c := physical[j]
		if seen[c] {
			return nil, fmt.Errorf("%w: column map %s->%s: label %q repeats", store.ErrConfig, natural, physical, c)
		}
		seen[c] = true
		i, ok := logicalPos[c]
		if !ok {
			return nil, fmt.Errorf("%w: column map %s->%s: label %q not in natural order", store.ErrConfig, natural, physical, c)
		}
		toLogical[j] = i
		toPhysical[i] = j
	}

	return &ColumnMap{
		label:      natural + "->" + physical,
		toPhysical: toPhysical,
		toLogical:  toLogical,
	}, nil
}

// MustNew is New for hard-coded orders; it panics on error.
func MustNew(natural, physical string) *ColumnMap {
	m, err := New(natural, physical)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *ColumnMap) Len() int {
	return len(m.toPhysical)
}

func (m *ColumnMap) Label() string {
	return m.label
}

// ToPhysicalSlot returns the physical slot that holds logical column i.
func (m *ColumnMap) ToPhysicalSlot(i int) int {
	return m.toPhysical[i]
}

// ToLogicalSlot returns the logical column held in physical slot j.
func (m *ColumnMap) ToLogicalSlot(j int) int {
	return m.toLogical[j]
}

// Map reorders a tuple from logical to physical order.
func (m *ColumnMap) Map(t tuple.Tuple) tuple.Tuple {
	m.checkArity(t)
	var ids [tuple.MaxArity]nodeid.NodeID
	for j, i := range m.toLogical {
		ids[j] = t.Get(i)
	}
	return tuple.Of(ids[:len(m.toLogical)]...)
}

// Unmap reorders a tuple from physical back to logical order.
func (m *ColumnMap) Unmap(t tuple.Tuple) tuple.Tuple {
	m.checkArity(t)
	var ids [tuple.MaxArity]nodeid.NodeID
	for i, j := range m.toPhysical {
		ids[i] = t.Get(j)
	}
	return tuple.Of(ids[:len(m.toPhysical)]...)
}

// Reverse returns the map with the two directions swapped.
func (m *ColumnMap) Reverse() *ColumnMap {
	natural, physical, _ := strings.Cut(m.label, "->")
	return &ColumnMap{
		label:      physical + "->" + natural,
		toPhysical: m.toLogical,
		toLogical:  m.toPhysical,
	}
}

// SameMapping reports whether both maps permute slots identically,
// regardless of labels.
func (m *ColumnMap) SameMapping(other *ColumnMap) bool {
	if len(m.toPhysical) != len(other.toPhysical) {
		return false
	}
	for i := range m.toPhysical {
		if m.toPhysical[i] != other.toPhysical[i] {
			return false
		}
	}
	return true
}

func (m *ColumnMap) checkArity(t tuple.Tuple) {
	if t.Len() != len(m.toPhysical) {
		panic(fmt.Errorf("%w: column map %s: tuple arity %d, expected %d", store.ErrUsage, m.label, t.Len(), len(m.toPhysical)))
	}
}

func (m *ColumnMap) String() string {
	return fmt.Sprintf("%s %v", m.label, m.toPhysical)
}
