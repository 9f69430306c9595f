package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/tdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `PREFIX ex: <http://example.org/>
ex:alice ex:knows ex:bob .
ex:alice ex:name "Alice" ex:g1 .
ex:alice ex:knows ex:bob .
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.nq")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	st, err := tdb.OpenMem(nil)
	require.NoError(t, err)
	defer st.Close()

	total, added, err := loadFile(st, path)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, added)

	prefixes, err := st.Prefixes(nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ex": "http://example.org/"}, prefixes)

	n, err := st.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestLoadFileReportsSyntaxErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.nq")
	require.NoError(t, os.WriteFile(path, []byte("<http://example.org/s> <http://example.org/p> .\n"), 0o600))

	st, err := tdb.OpenMem(nil)
	require.NoError(t, err)
	defer st.Close()

	_, _, err = loadFile(st, path)
	assert.Error(t, err)
}

func TestPatternTerm(t *testing.T) {
	prefixes := map[string]string{"ex": "http://example.org/"}

	for _, wildcard := range []string{"?", "_"} {
		term, err := patternTerm(wildcard, prefixes)
		require.NoError(t, err)
		assert.Nil(t, term)
	}

	term, err := patternTerm("DEFAULT", prefixes)
	require.NoError(t, err)
	assert.True(t, rdf.IsDefaultGraph(term))

	term, err = patternTerm("ex:bob", prefixes)
	require.NoError(t, err)
	assert.True(t, term.Equals(rdf.NewNamedNode("http://example.org/bob")))

	_, err = patternTerm("<unterminated", prefixes)
	assert.Error(t, err)
}

func TestFormatTerm(t *testing.T) {
	assert.Equal(t, "name", formatTerm(rdf.NewNamedNode("http://xmlns.com/foaf/0.1/name")))
	assert.Equal(t, "Thing", formatTerm(rdf.NewNamedNode("http://www.w3.org/2002/07/owl#Thing")))
	assert.Equal(t, "Alice", formatTerm(rdf.NewLiteral("Alice")))
	assert.Equal(t, "_:b0", formatTerm(rdf.NewBlankNode("b0")))
}

func TestDemoRuns(t *testing.T) {
	require.NoError(t, runDemo())
}
