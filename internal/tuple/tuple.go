// Package tuple provides fixed-arity tuples of node ids and iterators over them.
package tuple

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
)

// MaxArity bounds the number of slots a Tuple can hold.
const MaxArity = 8

// Tuple is an immutable ordered sequence of node ids. Tuples are comparable
// with == and usable as map keys; tuples of different arity are never equal.
type Tuple struct {
	slots [MaxArity]nodeid.NodeID
	arity uint8
}

// Of builds a tuple from ids. It panics if more than MaxArity ids are given.
func Of(ids ...nodeid.NodeID) Tuple {
	if len(ids) > MaxArity {
		panic(fmt.Sprintf("tuple: arity %d exceeds maximum %d", len(ids), MaxArity))
	}
	var t Tuple
	copy(t.slots[:], ids)
	t.arity = uint8(len(ids)) // #nosec G115 - bounded by MaxArity
	return t
}

// Any builds an all-wildcard pattern of the given arity.
func Any(arity int) Tuple {
	ids := make([]nodeid.NodeID, arity)
	for i := range ids {
		ids[i] = nodeid.Any
	}
	return Of(ids...)
}

func (t Tuple) Len() int {
	return int(t.arity)
}

// Get returns slot i.
func (t Tuple) Get(i int) nodeid.NodeID {
	if i < 0 || i >= int(t.arity) {
		panic(fmt.Sprintf("tuple: slot %d out of range for arity %d", i, t.arity))
	}
	return t.slots[i]
}

// Slice returns a copy of the slots.
func (t Tuple) Slice() []nodeid.NodeID {
	out := make([]nodeid.NodeID, t.arity)
	copy(out, t.slots[:t.arity])
	return out
}

// IsConcrete reports whether every slot holds a storable id.
func (t Tuple) IsConcrete() bool {
	for i := 0; i < int(t.arity); i++ {
		if !t.slots[i].IsConcrete() {
			return false
		}
	}
	return true
}

// CountBound counts the non-wildcard slots.
func (t Tuple) CountBound() int {
	n := 0
	for i := 0; i < int(t.arity); i++ {
		if !t.slots[i].IsAny() {
			n++
		}
	}
	return n
}

// Matches reports whether t agrees with pattern on every bound slot.
func (t Tuple) Matches(pattern Tuple) bool {
	if t.arity != pattern.arity {
		return false
	}
	for i := 0; i < int(t.arity); i++ {
		p := pattern.slots[i]
		if !p.IsAny() && p != t.slots[i] {
			return false
		}
	}
	return true
}

func (t Tuple) String() string {
	parts := make([]string, t.arity)
	for i := range parts {
		parts[i] = t.slots[i].String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}
