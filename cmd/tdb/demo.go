package main

import (
	"fmt"
	"strings"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/tdb"
	"github.com/fatih/color"
)

func runDemo() error {
	fmt.Println("=== TDB Tuple Store Demo ===")
	fmt.Println()

	st, err := tdb.OpenMem(nil)
	if err != nil {
		return fmt.Errorf("open in-memory store: %w", err)
	}
	defer st.Close()
	fmt.Println("In-memory store opened")
	fmt.Println()

	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")
	carol := rdf.NewNamedNode("http://example.org/carol")

	knows := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/knows")
	name := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")
	age := rdf.NewNamedNode("http://xmlns.com/foaf/0.1/age")

	fmt.Println("Inserting sample data...")
	triples := []*rdf.Triple{
		rdf.NewTriple(alice, name, rdf.NewLiteral("Alice")),
		rdf.NewTriple(alice, age, rdf.NewIntegerLiteral(30)),
		rdf.NewTriple(alice, knows, bob),

		rdf.NewTriple(bob, name, rdf.NewLiteral("Bob")),
		rdf.NewTriple(bob, age, rdf.NewIntegerLiteral(25)),
		rdf.NewTriple(bob, knows, carol),

		rdf.NewTriple(carol, name, rdf.NewLiteral("Carol")),
		rdf.NewTriple(carol, age, rdf.NewIntegerLiteral(28)),
	}
	for _, triple := range triples {
		if _, err := st.AddTriple(triple); err != nil {
			return fmt.Errorf("insert triple: %w", err)
		}
		fmt.Printf("  %s %s\n", color.GreenString("✓"), triple)
	}

	fmt.Println("\nInserting data into named graphs...")
	graph1 := rdf.NewNamedNode("http://example.org/graph1")
	graph2 := rdf.NewNamedNode("http://example.org/graph2")
	quads := []*rdf.Quad{
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice in Graph1"), graph1),
		rdf.NewQuad(bob, name, rdf.NewLiteral("Bob in Graph1"), graph1),
		rdf.NewQuad(alice, name, rdf.NewLiteral("Alice in Graph2"), graph2),
		rdf.NewQuad(carol, name, rdf.NewLiteral("Carol in Graph2"), graph2),
	}
	for _, quad := range quads {
		if _, err := st.Add(quad); err != nil {
			return fmt.Errorf("insert quad: %w", err)
		}
		fmt.Printf("  %s Quad in graph <%s>: %s %s %s\n",
			color.GreenString("✓"),
			quad.Graph.(*rdf.NamedNode).IRI,
			formatTerm(quad.Subject),
			formatTerm(quad.Predicate),
			formatTerm(quad.Object))
	}

	if err := st.SetPrefix(nil, "foaf", "http://xmlns.com/foaf/0.1/"); err != nil {
		return err
	}

	count, err := st.Count()
	if err != nil {
		return err
	}
	fmt.Printf("\nTotal quads stored: %d\n", count)

	fmt.Println()
	fmt.Println("=== Finding Data ===")
	fmt.Println()

	// ?person foaf:name ?name in every graph; served by the POS and GPOS indexes
	fmt.Println("Pattern: ? foaf:name ? (any graph)")
	if err := printMatches(st, nil, nil, name, nil); err != nil {
		return err
	}

	fmt.Println("\nPattern: alice ? ? (default graph)")
	if err := printMatches(st, rdf.NewDefaultGraph(), alice, nil, nil); err != nil {
		return err
	}

	fmt.Println("\nDeleting alice's age...")
	if _, err := st.DeleteTriple(triples[1]); err != nil {
		return err
	}
	if err := printMatches(st, rdf.NewDefaultGraph(), alice, nil, nil); err != nil {
		return err
	}

	fmt.Println()
	if err := printStats(st); err != nil {
		return err
	}

	fmt.Println("\n=== Demo Complete ===")
	return nil
}

func printMatches(st *tdb.Store, g, s, p, o rdf.Term) error {
	it, err := st.Find(g, s, p, o)
	if err != nil {
		return err
	}
	defer it.Close()

	n := 0
	for it.Next() {
		q := it.Quad()
		graph := "default"
		if !rdf.IsDefaultGraph(q.Graph) {
			graph = formatTerm(q.Graph)
		}
		fmt.Printf("  %-8s | %-6s | %-6s | %s\n", graph, formatTerm(q.Subject), formatTerm(q.Predicate), formatTerm(q.Object))
		n++
	}
	if err := it.Err(); err != nil {
		return err
	}
	fmt.Printf("Found %d results\n", n)
	return nil
}

// formatTerm shortens IRIs to their local name
func formatTerm(term rdf.Term) string {
	switch t := term.(type) {
	case *rdf.NamedNode:
		if i := strings.LastIndexAny(t.IRI, "/#"); i >= 0 {
			return t.IRI[i+1:]
		}
		return t.IRI
	case *rdf.Literal:
		return t.Value
	default:
		return term.String()
	}
}
