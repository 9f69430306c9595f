package tupletable

import (
	"fmt"

	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodetable"
	"github.com/aleksaelezovic/trigo-tdb/internal/tuple"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// NodeTupleTable is a TupleTable addressed by terms instead of node ids
type NodeTupleTable struct {
	table *TupleTable
	nodes nodetable.NodeTable
}

func NewNodeTupleTable(table *TupleTable, nodes nodetable.NodeTable) *NodeTupleTable {
	return &NodeTupleTable{table: table, nodes: nodes}
}

func (n *NodeTupleTable) Table() *TupleTable {
	return n.table
}

func (n *NodeTupleTable) NodeTable() nodetable.NodeTable {
	return n.nodes
}

func (n *NodeTupleTable) checkArity(terms []rdf.Term) {
	if len(terms) != n.table.Arity() {
		panic(fmt.Errorf("%w: tuple table %s: %d terms, expected %d", store.ErrUsage, n.table.Name(), len(terms), n.table.Arity()))
	}
}

// Add interns every term and stores the tuple
func (n *NodeTupleTable) Add(terms ...rdf.Term) (bool, error) {
	n.checkArity(terms)
	ids := make([]nodeid.NodeID, len(terms))
	for i, term := range terms {
		if term == nil {
			return false, fmt.Errorf("%w: nil term in slot %d", store.ErrUsage, i)
		}
		id, err := n.nodes.Intern(term)
		if err != nil {
			return false, err
		}
		ids[i] = id
	}
	return n.table.Add(tuple.Of(ids...))
}

// lookup maps terms to ids; nil terms become nodeid.Any. ok is false when a
// term was never interned, in which case nothing can match.
func (n *NodeTupleTable) lookup(terms []rdf.Term) (tuple.Tuple, bool, error) {
	n.checkArity(terms)
	ids := make([]nodeid.NodeID, len(terms))
	for i, term := range terms {
		if term == nil {
			ids[i] = nodeid.Any
			continue
		}
		id, err := n.nodes.Lookup(term)
		if err != nil {
			return tuple.Tuple{}, false, err
		}
		if id == nodeid.DoesNotExist {
			return tuple.Tuple{}, false, nil
		}
		ids[i] = id
	}
	return tuple.Of(ids...), true, nil
}

// Delete removes the tuple; terms never interned mean it was not present
func (n *NodeTupleTable) Delete(terms ...rdf.Term) (bool, error) {
	for i, term := range terms {
		if term == nil {
			return false, fmt.Errorf("%w: nil term in slot %d", store.ErrUsage, i)
		}
	}
	tup, ok, err := n.lookup(terms)
	if err != nil || !ok {
		return false, err
	}
	return n.table.Delete(tup)
}

func (n *NodeTupleTable) Contains(terms ...rdf.Term) (bool, error) {
	tup, ok, err := n.lookup(terms)
	if err != nil || !ok || !tup.IsConcrete() {
		return false, err
	}
	return n.table.Contains(tup)
}

// Find returns the matching tuples as terms; a nil term matches anything.
func (n *NodeTupleTable) Find(pattern ...rdf.Term) (*TermIterator, error) {
	tup, ok, err := n.lookup(pattern)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TermIterator{it: tuple.Empty(), nodes: n.nodes}, nil
	}
	it, err := n.table.Find(tup)
	if err != nil {
		return nil, err
	}
	return &TermIterator{it: it, nodes: n.nodes}, nil
}

// TermIterator resolves the node ids of each found tuple
type TermIterator struct {
	it    tuple.Iterator
	nodes nodetable.NodeTable
	cur   []rdf.Term
	err   error
}

func (t *TermIterator) Next() bool {
	if t.err != nil || !t.it.Next() {
		return false
	}
	tup := t.it.Tuple()
	terms := make([]rdf.Term, tup.Len())
	for i := range terms {
		term, err := t.nodes.Resolve(tup.Get(i))
		if err != nil {
			t.err = fmt.Errorf("resolve %s: %w", tup.Get(i), err)
			return false
		}
		terms[i] = term
	}
	t.cur = terms
	return true
}

// Terms returns the current tuple in the table's natural column order
func (t *TermIterator) Terms() []rdf.Term {
	return t.cur
}

// Tuple returns the current tuple's node ids
func (t *TermIterator) Tuple() tuple.Tuple {
	return t.it.Tuple()
}

func (t *TermIterator) Err() error {
	if t.err != nil {
		return t.err
	}
	return t.it.Err()
}

func (t *TermIterator) Close() error {
	return t.it.Close()
}
