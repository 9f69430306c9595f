package nodetable

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/internal/storage"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStorage(t *testing.T, dir string) store.Storage {
	t.Helper()
	s, err := storage.NewBadgerStorage(storage.BadgerConfig{
		Dir:      dir,
		InMemory: dir == "",
		Logger:   logging.Nop(),
	})
	require.NoError(t, err)
	return s
}

func newTable(t *testing.T, s store.Storage, cacheSize int, m *metrics.Metrics) NodeTable {
	t.Helper()
	node2id, err := s.RangeIndex("node2id", Node2IDFactory)
	require.NoError(t, err)
	nodes, err := s.ObjectFile("nodes")
	require.NoError(t, err)

	nt, err := New(Config{
		Node2ID:              node2id,
		Nodes:                nodes,
		Node2NodeIDCacheSize: cacheSize,
		NodeID2NodeCacheSize: cacheSize,
		NodeMissCacheSize:    cacheSize,
		Metrics:              m,
	})
	require.NoError(t, err)
	return nt
}

var sampleTerms = []rdf.Term{
	rdf.NewNamedNode("http://example.org/alice"),
	rdf.NewBlankNode("b1"),
	rdf.NewLiteral("Alice"),
	rdf.NewLiteralWithLanguage("chat", "fr"),
	rdf.NewLiteralWithDatatype("3.25", rdf.XSDDouble),
	rdf.NewIntegerLiteral(42),
	rdf.NewIntegerLiteral(-7),
	rdf.NewLiteralWithDatatype("0042", rdf.XSDInteger),
	rdf.NewLiteralWithDatatype("12.5", rdf.XSDDecimal),
	rdf.NewBooleanLiteral(true),
	rdf.NewLiteralWithDatatype("1", rdf.XSDBoolean),
	rdf.NewLiteralWithDatatype("2024-02-29", rdf.XSDDate),
	rdf.NewLiteralWithDatatype("2024-02-29T10:11:12.345Z", rdf.XSDDateTime),
	rdf.NewLiteralWithDatatype("2024-02-29T10:11:12+02:00", rdf.XSDDateTime),
}

func TestResolveInternRoundTrip(t *testing.T) {
	for _, cacheSize := range []int{0, 100} {
		t.Run(fmt.Sprintf("cache=%d", cacheSize), func(t *testing.T) {
			s := openStorage(t, "")
			defer s.Close()
			nt := newTable(t, s, cacheSize, nil)

			ids := make(map[nodeid.NodeID]rdf.Term)
			for _, term := range sampleTerms {
				id, err := nt.Intern(term)
				require.NoError(t, err)
				prev, dup := ids[id]
				require.False(t, dup, "%s and %s share id %s", term, prev, id)
				ids[id] = term

				got, err := nt.Resolve(id)
				require.NoError(t, err)
				assert.True(t, term.Equals(got), "resolve(intern(%s)) = %s", term, got)
			}
		})
	}
}

func TestInternIsIdempotent(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	nt := newTable(t, s, 10, nil)

	for _, term := range sampleTerms {
		first, err := nt.Intern(term)
		require.NoError(t, err)
		second, err := nt.Intern(term)
		require.NoError(t, err)
		assert.Equal(t, first, second, term.String())
	}
}

func TestIntegerZeroAndStringZeroDiffer(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	nt := newTable(t, s, 10, nil)

	num, err := nt.Intern(rdf.NewIntegerLiteral(0))
	require.NoError(t, err)
	str, err := nt.Intern(rdf.NewLiteral("0"))
	require.NoError(t, err)

	assert.True(t, num.IsInline())
	assert.True(t, str.IsPtr())
	assert.NotEqual(t, num, str)
}

func TestLookupDoesNotAllocate(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	nt := newTable(t, s, 10, nil)
	bob := rdf.NewNamedNode("http://example.org/bob")

	id, err := nt.Lookup(bob)
	require.NoError(t, err)
	assert.Equal(t, nodeid.DoesNotExist, id)

	// the second negative lookup is answered by the miss cache
	id, err = nt.Lookup(bob)
	require.NoError(t, err)
	assert.Equal(t, nodeid.DoesNotExist, id)

	interned, err := nt.Intern(bob)
	require.NoError(t, err)
	id, err = nt.Lookup(bob)
	require.NoError(t, err)
	assert.Equal(t, interned, id, "interning clears the negative entry")
}

func TestResolveUnknown(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	nt := newTable(t, s, 10, nil)

	for _, id := range []nodeid.NodeID{nodeid.New(nodeid.KindPtr, 12345), nodeid.Any, nodeid.DoesNotExist} {
		_, err := nt.Resolve(id)
		assert.True(t, errors.Is(err, store.ErrNotFound), "%s: %v", id, err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	alice := rdf.NewNamedNode("http://example.org/alice")

	s := openStorage(t, dir)
	nt := newTable(t, s, 10, nil)
	id, err := nt.Intern(alice)
	require.NoError(t, err)
	require.NoError(t, nt.Sync())
	require.NoError(t, nt.Close())
	require.NoError(t, s.Close())

	s = openStorage(t, dir)
	defer s.Close()
	nt = newTable(t, s, 10, nil)

	got, err := nt.Lookup(alice)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other, err := nt.Intern(rdf.NewNamedNode("http://example.org/bob"))
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestConcurrentIntern(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	nt := newTable(t, s, 100, nil)

	const workers = 8
	results := make([][]nodeid.NodeID, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id, err := nt.Intern(rdf.NewNamedNode(fmt.Sprintf("http://example.org/n%d", i)))
				assert.NoError(t, err)
				results[w] = append(results[w], id)
			}
		}(w)
	}
	wg.Wait()

	for w := 1; w < workers; w++ {
		assert.Equal(t, results[0], results[w])
	}
}

func TestCacheMetrics(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	m := metrics.New()
	nt := newTable(t, s, 10, m)

	term := rdf.NewLiteral("cached")
	_, err := nt.Intern(term)
	require.NoError(t, err)
	_, err = nt.Intern(term)
	require.NoError(t, err)

	var hits dto.Metric
	require.NoError(t, m.NodeCache.WithLabelValues(CacheNode2ID, metrics.Hit).Write(&hits))
	assert.Equal(t, 1.0, hits.GetCounter().GetValue())

	var allocated dto.Metric
	require.NoError(t, m.NodesAllocated.Write(&allocated))
	assert.Equal(t, 1.0, allocated.GetCounter().GetValue())
}

func TestNativeRejectsWrongFactory(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	idx, err := s.RangeIndex("node2id", store.NewRecordFactory(8, 8))
	require.NoError(t, err)
	nodes, err := s.ObjectFile("nodes")
	require.NoError(t, err)

	_, err = NewNative(idx, nodes, nil)
	assert.True(t, errors.Is(err, store.ErrConfig))
}

func TestNativeDetectsHashCollision(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	node2id, err := s.RangeIndex("node2id", Node2IDFactory)
	require.NoError(t, err)
	nodes, err := s.ObjectFile("nodes")
	require.NoError(t, err)
	nt, err := NewNative(node2id, nodes, nil)
	require.NoError(t, err)

	alice := rdf.NewNamedNode("http://example.org/alice")
	bob := rdf.NewNamedNode("http://example.org/bob")

	// alice's hash pointing at bob's object stands in for two terms sharing a hash
	aliceBytes, err := Encode(alice)
	require.NoError(t, err)
	bobBytes, err := Encode(bob)
	require.NoError(t, err)
	ptr, err := nodes.Write(bobBytes)
	require.NoError(t, err)
	bobID, err := nodeid.FromPtr(ptr)
	require.NoError(t, err)
	_, err = node2id.Insert(store.Record{Key: hashKey(aliceBytes), Value: bobID.Bytes()})
	require.NoError(t, err)

	_, err = nt.Intern(alice)
	assert.True(t, errors.Is(err, store.ErrInconsistent), "intern: %v", err)
	_, err = nt.Lookup(alice)
	assert.True(t, errors.Is(err, store.ErrInconsistent), "lookup: %v", err)

	id, err := nt.Intern(bob)
	require.NoError(t, err)
	assert.NotEqual(t, bobID, id, "bob's own hash was never recorded")
	got, err := nt.Resolve(id)
	require.NoError(t, err)
	assert.True(t, bob.Equals(got))
}

func TestXSDStringInternsAsSimpleLiteral(t *testing.T) {
	s := openStorage(t, "")
	defer s.Close()
	nt := newTable(t, s, 10, nil)

	plain, err := nt.Intern(rdf.NewLiteral("x"))
	require.NoError(t, err)
	typed, err := nt.Intern(rdf.NewLiteralWithDatatype("x", rdf.XSDString))
	require.NoError(t, err)
	assert.Equal(t, plain, typed)

	found, err := nt.Lookup(rdf.NewLiteralWithDatatype("x", rdf.XSDString))
	require.NoError(t, err)
	assert.Equal(t, plain, found)
}
