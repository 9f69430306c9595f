// Package tupleindex stores tuples of node ids in one range index, in the
// physical column order given by a column map.
package tupleindex

import (
	"bytes"
	"fmt"

	"github.com/aleksaelezovic/trigo-tdb/internal/colmap"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/internal/tuple"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// TupleIndex is a column map plus the range index holding its records. A
// record key is the mapped tuple's ids concatenated, nodeid.Size bytes each.
type TupleIndex struct {
	name  string
	cmap  *colmap.ColumnMap
	index store.RangeIndex
	arity int
}

// Factory returns the record shape for tuples of the given arity
func Factory(arity int) store.RecordFactory {
	return store.NewRecordFactory(arity*nodeid.Size, 0)
}

func New(name string, cmap *colmap.ColumnMap, index store.RangeIndex) (*TupleIndex, error) {
	want := Factory(cmap.Len())
	if got := index.Factory(); got != want {
		return nil, fmt.Errorf("%w: index %s has %s, want %s", store.ErrConfig, name, got, want)
	}
	return &TupleIndex{name: name, cmap: cmap, index: index, arity: cmap.Len()}, nil
}

func (t *TupleIndex) Name() string {
	return t.name
}

func (t *TupleIndex) ColumnMap() *colmap.ColumnMap {
	return t.cmap
}

func (t *TupleIndex) Arity() int {
	return t.arity
}

func (t *TupleIndex) checkArity(tup tuple.Tuple) {
	if tup.Len() != t.arity {
		panic(fmt.Errorf("%w: index %s: tuple arity %d, expected %d", store.ErrUsage, t.name, tup.Len(), t.arity))
	}
}

func (t *TupleIndex) key(tup tuple.Tuple) []byte {
	phys := t.cmap.Map(tup)
	key := make([]byte, t.arity*nodeid.Size)
	for j := 0; j < t.arity; j++ {
		phys.Get(j).Put(key[j*nodeid.Size:])
	}
	return key
}

func (t *TupleIndex) decode(key []byte) tuple.Tuple {
	var ids [tuple.MaxArity]nodeid.NodeID
	for j := 0; j < t.arity; j++ {
		ids[j] = nodeid.FromBytes(key[j*nodeid.Size:])
	}
	return t.cmap.Unmap(tuple.Of(ids[:t.arity]...))
}

func (t *TupleIndex) checkConcrete(tup tuple.Tuple) error {
	if !tup.IsConcrete() {
		return fmt.Errorf("%w: index %s: tuple %s has a reserved id", store.ErrUsage, t.name, tup)
	}
	return nil
}

// Add stores tup, reporting whether it was not already present
func (t *TupleIndex) Add(tup tuple.Tuple) (bool, error) {
	t.checkArity(tup)
	if err := t.checkConcrete(tup); err != nil {
		return false, err
	}
	return t.index.Insert(store.Record{Key: t.key(tup)})
}

// Delete removes tup, reporting whether it was present
func (t *TupleIndex) Delete(tup tuple.Tuple) (bool, error) {
	t.checkArity(tup)
	if err := t.checkConcrete(tup); err != nil {
		return false, err
	}
	return t.index.Delete(t.key(tup))
}

// Contains reports whether the fully bound tuple is stored
func (t *TupleIndex) Contains(tup tuple.Tuple) (bool, error) {
	t.checkArity(tup)
	if !tup.IsConcrete() {
		return false, nil
	}
	return t.index.Contains(t.key(tup))
}

// Weight is the number of leading physical slots bound in pattern: how far
// this index can narrow a scan for it.
func (t *TupleIndex) Weight(pattern tuple.Tuple) int {
	t.checkArity(pattern)
	n := 0
	for j := 0; j < t.arity; j++ {
		if pattern.Get(t.cmap.ToLogicalSlot(j)).IsAny() {
			break
		}
		n++
	}
	return n
}

// Find returns the stored tuples matching pattern, in this index's order.
// Any marks an unbound slot.
func (t *TupleIndex) Find(pattern tuple.Tuple) (tuple.Iterator, error) {
	t.checkArity(pattern)

	bound := 0
	for i := 0; i < t.arity; i++ {
		id := pattern.Get(i)
		if id.IsAny() {
			continue
		}
		if !id.IsConcrete() {
			// DoesNotExist: no stored tuple can hold it
			return tuple.Empty(), nil
		}
		bound++
	}

	run := t.Weight(pattern)
	if run == t.arity {
		found, err := t.index.Contains(t.key(pattern))
		if err != nil || !found {
			return tuple.Empty(), err
		}
		return tuple.FromSlice(pattern), nil
	}

	var min, max []byte
	if run > 0 {
		min = t.key(pattern)[:run*nodeid.Size]
		max = increment(min)
	}
	it, err := t.scan(min, max)
	if err != nil {
		return nil, err
	}
	if bound > run {
		// bound slots after the first wildcard could not narrow the range
		return tuple.Filter(it, func(tup tuple.Tuple) bool { return tup.Matches(pattern) }), nil
	}
	return it, nil
}

// All iterates over every stored tuple
func (t *TupleIndex) All() (tuple.Iterator, error) {
	return t.scan(nil, nil)
}

func (t *TupleIndex) scan(min, max []byte) (tuple.Iterator, error) {
	it, err := t.index.Iterate(min, max)
	if err != nil {
		return nil, err
	}
	return &recordIterator{it: it, index: t}, nil
}

// increment returns the smallest key greater than every key starting with
// prefix, or nil when there is none.
func increment(prefix []byte) []byte {
	out := bytes.Clone(prefix)
	for i := len(out) - 1; i >= 0; i-- {
		out[i]++
		if out[i] != 0 {
			return out[:i+1]
		}
	}
	return nil
}

func (t *TupleIndex) Size() (int64, error) {
	return t.index.Size()
}

func (t *TupleIndex) IsEmpty() (bool, error) {
	return t.index.IsEmpty()
}

func (t *TupleIndex) Clear() error {
	return t.index.Clear()
}

func (t *TupleIndex) Sync() error {
	return t.index.Sync()
}

func (t *TupleIndex) Close() error {
	return t.index.Close()
}

func (t *TupleIndex) String() string {
	return t.name + " " + t.cmap.Label()
}

// recordIterator decodes range index records back to logical tuples
type recordIterator struct {
	it    store.RecordIterator
	index *TupleIndex
	cur   tuple.Tuple
}

func (r *recordIterator) Next() bool {
	if !r.it.Next() {
		return false
	}
	r.cur = r.index.decode(r.it.Record().Key)
	return true
}

func (r *recordIterator) Tuple() tuple.Tuple {
	return r.cur
}

func (r *recordIterator) Err() error {
	return r.it.Err()
}

func (r *recordIterator) Close() error {
	return r.it.Close()
}
