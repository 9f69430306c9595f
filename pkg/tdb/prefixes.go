package tdb

import (
	"fmt"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// Prefix mappings are (graph, prefix, IRI) tuples. A nil graph is the
// default graph.

func prefixGraph(g rdf.Term) rdf.Term {
	if g == nil {
		return rdf.NewDefaultGraph()
	}
	return g
}

// SetPrefix maps prefix to iri in graph, replacing any earlier mapping
func (s *Store) SetPrefix(graph rdf.Term, prefix, iri string) error {
	if iri == "" {
		return fmt.Errorf("%w: empty namespace IRI for prefix %q", store.ErrUsage, prefix)
	}
	g, p := prefixGraph(graph), rdf.NewLiteral(prefix)
	return s.write(func() error {
		if err := s.deletePrefix(g, p); err != nil {
			return err
		}
		_, err := s.prefixes.Add(g, p, rdf.NewNamedNode(iri))
		return err
	})
}

// DeletePrefix removes the mapping of prefix in graph, if any
func (s *Store) DeletePrefix(graph rdf.Term, prefix string) error {
	g, p := prefixGraph(graph), rdf.NewLiteral(prefix)
	return s.write(func() error {
		return s.deletePrefix(g, p)
	})
}

func (s *Store) deletePrefix(g, p rdf.Term) error {
	it, err := s.prefixes.Find(g, p, nil)
	if err != nil {
		return err
	}
	var old [][]rdf.Term
	for it.Next() {
		old = append(old, it.Terms())
	}
	if err := it.Err(); err != nil {
		_ = it.Close()
		return err
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, terms := range old {
		if _, err := s.prefixes.Delete(terms...); err != nil {
			return err
		}
	}
	return nil
}

// Prefixes returns the prefix to IRI mappings of graph
func (s *Store) Prefixes(graph rdf.Term) (map[string]string, error) {
	out := make(map[string]string)
	err := s.read(func() error {
		it, err := s.prefixes.Find(prefixGraph(graph), nil, nil)
		if err != nil {
			return err
		}
		defer it.Close()
		for it.Next() {
			terms := it.Terms()
			prefix, ok1 := terms[1].(*rdf.Literal)
			iri, ok2 := terms[2].(*rdf.NamedNode)
			if !ok1 || !ok2 {
				return fmt.Errorf("%w: malformed prefix entry %v", store.ErrInconsistent, terms)
			}
			out[prefix.Value] = iri.IRI
		}
		return it.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
