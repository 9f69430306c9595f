package nodetable

import (
	"fmt"

	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// Inline answers inlinable literals from the id bits and passes every other
// term to base.
type Inline struct {
	base NodeTable
}

func NewInline(base NodeTable) *Inline {
	return &Inline{base: base}
}

func (n *Inline) Intern(term rdf.Term) (nodeid.NodeID, error) {
	if id, ok := nodeid.Inline(term); ok {
		return id, nil
	}
	return n.base.Intern(term)
}

func (n *Inline) Lookup(term rdf.Term) (nodeid.NodeID, error) {
	if id, ok := nodeid.Inline(term); ok {
		return id, nil
	}
	return n.base.Lookup(term)
}

func (n *Inline) Resolve(id nodeid.NodeID) (rdf.Term, error) {
	switch {
	case id.IsInline():
		term, err := nodeid.Extract(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}
		return term, nil
	case !id.IsConcrete():
		return nil, fmt.Errorf("%w: reserved node id %s", store.ErrNotFound, id)
	}
	return n.base.Resolve(id)
}

func (n *Inline) Sync() error {
	return n.base.Sync()
}

func (n *Inline) Close() error {
	return n.base.Close()
}
