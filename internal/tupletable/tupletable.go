// Package tupletable keeps several tuple indexes over one set of tuples in
// step, and answers finds from whichever index suits the pattern best.
package tupletable

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/tuple"
	"github.com/aleksaelezovic/trigo-tdb/internal/tupleindex"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// TupleTable owns a primary tuple index and any number of secondary ones.
// The primary decides whether a tuple is present; every secondary must agree.
type TupleTable struct {
	name    string
	arity   int
	indexes []*tupleindex.TupleIndex
	metrics *metrics.Metrics
	log     logging.Logger

	mu     sync.Mutex
	broken error
	closed atomic.Bool
}

// New builds a table over indexes; indexes[0] is the primary.
func New(name string, indexes []*tupleindex.TupleIndex, m *metrics.Metrics, log logging.Logger) (*TupleTable, error) {
	if len(indexes) == 0 {
		return nil, fmt.Errorf("%w: tuple table %s has no indexes", store.ErrConfig, name)
	}
	arity := indexes[0].Arity()
	for i, idx := range indexes {
		if idx.Arity() != arity {
			return nil, fmt.Errorf("%w: tuple table %s: index %s has arity %d, primary has %d",
				store.ErrConfig, name, idx.Name(), idx.Arity(), arity)
		}
		for _, other := range indexes[:i] {
			if idx.ColumnMap().SameMapping(other.ColumnMap()) {
				return nil, fmt.Errorf("%w: tuple table %s: indexes %s and %s have the same order",
					store.ErrConfig, name, other.Name(), idx.Name())
			}
		}
	}
	return &TupleTable{
		name:    name,
		arity:   arity,
		indexes: indexes,
		metrics: m,
		log:     logging.OrNop(log).With("table", name),
	}, nil
}

func (t *TupleTable) Name() string {
	return t.name
}

func (t *TupleTable) Arity() int {
	return t.arity
}

func (t *TupleTable) Primary() *tupleindex.TupleIndex {
	return t.indexes[0]
}

// Indexes returns every index, primary first
func (t *TupleTable) Indexes() []*tupleindex.TupleIndex {
	return t.indexes
}

func (t *TupleTable) checkArity(tup tuple.Tuple) {
	if tup.Len() != t.arity {
		panic(fmt.Errorf("%w: tuple table %s: tuple arity %d, expected %d", store.ErrUsage, t.name, tup.Len(), t.arity))
	}
}

// writable reports why the table cannot take writes
func (t *TupleTable) writable() error {
	if t.closed.Load() {
		return store.ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.broken
}

// diverged latches the table: every later write fails with the returned error.
func (t *TupleTable) diverged(idx *tupleindex.TupleIndex, op string, tup tuple.Tuple, cause error) error {
	err := fmt.Errorf("%w: table %s: %s %s on index %s", store.ErrInconsistent, t.name, op, tup, idx.Name())
	if cause != nil {
		err = fmt.Errorf("%w: %w", err, cause)
	}
	t.log.Error("tuple indexes diverged", "index", idx.Name(), "op", op, "tuple", tup.String(), "err", err)

	t.mu.Lock()
	if t.broken == nil {
		t.broken = err
	}
	t.mu.Unlock()
	return err
}

// Add stores tup in every index and reports whether it was new
func (t *TupleTable) Add(tup tuple.Tuple) (bool, error) {
	t.checkArity(tup)
	if err := t.writable(); err != nil {
		return false, err
	}

	added, err := t.indexes[0].Add(tup)
	if err != nil || !added {
		return false, err
	}
	for _, idx := range t.indexes[1:] {
		ok, err := idx.Add(tup)
		if err != nil {
			return false, t.diverged(idx, "add", tup, err)
		}
		if !ok {
			return false, t.diverged(idx, "add", tup, errors.New("secondary already held the tuple"))
		}
	}
	t.metrics.Added(t.name)
	return true, nil
}

// Delete removes tup from every index and reports whether the primary held it
func (t *TupleTable) Delete(tup tuple.Tuple) (bool, error) {
	t.checkArity(tup)
	if err := t.writable(); err != nil {
		return false, err
	}

	deleted, err := t.indexes[0].Delete(tup)
	if err != nil {
		return false, err
	}
	for _, idx := range t.indexes[1:] {
		ok, err := idx.Delete(tup)
		if err != nil {
			return false, t.diverged(idx, "delete", tup, err)
		}
		if ok != deleted {
			return false, t.diverged(idx, "delete", tup, fmt.Errorf("primary present=%t, secondary present=%t", deleted, ok))
		}
	}
	if deleted {
		t.metrics.Deleted(t.name)
	}
	return deleted, nil
}

// Contains reports whether the primary holds tup
func (t *TupleTable) Contains(tup tuple.Tuple) (bool, error) {
	t.checkArity(tup)
	if t.closed.Load() {
		return false, store.ErrClosed
	}
	return t.indexes[0].Contains(tup)
}

// BestIndex returns the index with the longest usable leading run for
// pattern; ties go to the earlier index, so the primary wins them.
func (t *TupleTable) BestIndex(pattern tuple.Tuple) *tupleindex.TupleIndex {
	t.checkArity(pattern)
	best := t.indexes[0]
	weight := best.Weight(pattern)
	for _, idx := range t.indexes[1:] {
		if w := idx.Weight(pattern); w > weight {
			best, weight = idx, w
		}
	}
	return best
}

// Find returns the tuples matching pattern; nodeid.Any marks unbound slots.
func (t *TupleTable) Find(pattern tuple.Tuple) (tuple.Iterator, error) {
	t.checkArity(pattern)
	if t.closed.Load() {
		return nil, store.ErrClosed
	}
	if pattern.CountBound() == 0 {
		t.metrics.Find(t.name, t.indexes[0].Name())
		return t.indexes[0].All()
	}
	best := t.BestIndex(pattern)
	t.metrics.Find(t.name, best.Name())
	return best.Find(pattern)
}

func (t *TupleTable) All() (tuple.Iterator, error) {
	return t.Find(tuple.Any(t.arity))
}

func (t *TupleTable) Size() (int64, error) {
	if t.closed.Load() {
		return 0, store.ErrClosed
	}
	return t.indexes[0].Size()
}

func (t *TupleTable) IsEmpty() (bool, error) {
	if t.closed.Load() {
		return false, store.ErrClosed
	}
	return t.indexes[0].IsEmpty()
}

// Clear empties every index. An emptied table is consistent again.
func (t *TupleTable) Clear() error {
	if t.closed.Load() {
		return store.ErrClosed
	}
	for _, idx := range t.indexes {
		if err := idx.Clear(); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.broken = nil
	t.mu.Unlock()
	return nil
}

func (t *TupleTable) Sync() error {
	if t.closed.Load() {
		return store.ErrClosed
	}
	var errs []error
	for _, idx := range t.indexes {
		errs = append(errs, idx.Sync())
	}
	return errors.Join(errs...)
}

// Close closes every index; the table is unusable afterwards.
func (t *TupleTable) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, idx := range t.indexes {
		errs = append(errs, idx.Close())
	}
	return errors.Join(errs...)
}
