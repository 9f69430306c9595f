package tupleindex

import (
	"errors"
	"testing"

	"github.com/aleksaelezovic/trigo-tdb/internal/colmap"
	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/internal/storage"
	"github.com/aleksaelezovic/trigo-tdb/internal/tuple"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var star = nodeid.Any

func id(n uint64) nodeid.NodeID {
	return nodeid.New(nodeid.KindPtr, n)
}

func newIndex(t *testing.T, natural, physical string) *TupleIndex {
	t.Helper()
	s, err := storage.NewPebbleStorage(storage.PebbleConfig{InMemory: true, Logger: logging.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cmap := colmap.MustNew(natural, physical)
	ri, err := s.RangeIndex(physical, Factory(cmap.Len()))
	require.NoError(t, err)
	idx, err := New(physical, cmap, ri)
	require.NoError(t, err)
	return idx
}

func collect(t *testing.T, it tuple.Iterator, err error) []tuple.Tuple {
	t.Helper()
	require.NoError(t, err)
	tuples, err := tuple.Collect(it)
	require.NoError(t, err)
	return tuples
}

func TestAddDeleteIdempotence(t *testing.T) {
	idx := newIndex(t, "SPO", "POS")
	tup := tuple.Of(id(1), id(2), id(3))

	added, err := idx.Add(tup)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = idx.Add(tup)
	require.NoError(t, err)
	assert.False(t, added)

	deleted, err := idx.Delete(tup)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = idx.Delete(tup)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestWeight(t *testing.T) {
	idx := newIndex(t, "SPO", "POS")
	s, p, o := id(1), id(2), id(3)

	tests := []struct {
		name    string
		pattern tuple.Tuple
		want    int
	}{
		{"all wildcard", tuple.Of(star, star, star), 0},
		{"all bound", tuple.Of(s, p, o), 3},
		{"predicate", tuple.Of(star, p, star), 1},
		{"predicate object", tuple.Of(star, p, o), 2},
		{"subject only", tuple.Of(s, star, star), 0},
		{"gap", tuple.Of(s, p, star), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.Weight(tt.pattern))
		})
	}
}

func TestWeightIgnoresSlotsAfterWildcard(t *testing.T) {
	idx := newIndex(t, "SPO", "SPO")
	base := idx.Weight(tuple.Of(id(1), star, star))
	assert.Equal(t, base, idx.Weight(tuple.Of(id(1), star, id(3))))
}

func TestFind(t *testing.T) {
	idx := newIndex(t, "SPO", "POS")
	data := []tuple.Tuple{
		tuple.Of(id(1), id(10), id(100)),
		tuple.Of(id(1), id(10), id(101)),
		tuple.Of(id(1), id(11), id(100)),
		tuple.Of(id(2), id(10), id(100)),
		tuple.Of(id(2), id(12), id(102)),
	}
	for _, tup := range data {
		_, err := idx.Add(tup)
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		pattern tuple.Tuple
		want    []tuple.Tuple
	}{
		{"all", tuple.Of(star, star, star), data},
		{"point hit", tuple.Of(id(2), id(12), id(102)), []tuple.Tuple{data[4]}},
		{"point miss", tuple.Of(id(2), id(12), id(100)), nil},
		{"leading run", tuple.Of(star, id(10), star), []tuple.Tuple{data[0], data[1], data[3]}},
		{"longer run", tuple.Of(star, id(10), id(100)), []tuple.Tuple{data[0], data[3]}},
		{"gap filtered", tuple.Of(id(1), id(10), star), []tuple.Tuple{data[0], data[1]}},
		{"no run filtered", tuple.Of(id(2), star, star), []tuple.Tuple{data[3], data[4]}},
		{"unknown term", tuple.Of(nodeid.DoesNotExist, star, star), nil},
		{"no match", tuple.Of(star, id(99), star), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := idx.Find(tt.pattern)
			got := collect(t, it, err)
			assert.ElementsMatch(t, tt.want, got)
			for _, tup := range got {
				assert.True(t, tup.Matches(tt.pattern))
			}
		})
	}
}

func TestFindReturnsIndexOrder(t *testing.T) {
	idx := newIndex(t, "SPO", "POS")
	for _, tup := range []tuple.Tuple{
		tuple.Of(id(3), id(1), id(9)),
		tuple.Of(id(1), id(2), id(5)),
		tuple.Of(id(2), id(1), id(7)),
	} {
		_, err := idx.Add(tup)
		require.NoError(t, err)
	}

	it, err := idx.All()
	got := collect(t, it, err)
	assert.Equal(t, []tuple.Tuple{
		tuple.Of(id(2), id(1), id(7)),
		tuple.Of(id(3), id(1), id(9)),
		tuple.Of(id(1), id(2), id(5)),
	}, got, "predicate-major, then object")
}

func TestQuadIndex(t *testing.T) {
	idx := newIndex(t, "GSPO", "SPOG")
	g1, g2 := id(50), id(51)
	a := tuple.Of(g1, id(1), id(2), id(3))
	b := tuple.Of(g2, id(1), id(2), id(3))
	for _, tup := range []tuple.Tuple{a, b} {
		_, err := idx.Add(tup)
		require.NoError(t, err)
	}

	it, err := idx.Find(tuple.Of(star, id(1), id(2), id(3)))
	assert.ElementsMatch(t, []tuple.Tuple{a, b}, collect(t, it, err))

	it, err = idx.Find(tuple.Of(g2, id(1), star, star))
	assert.Equal(t, []tuple.Tuple{b}, collect(t, it, err))

	size, err := idx.Size()
	require.NoError(t, err)
	assert.Equal(t, int64(2), size)
}

func TestClear(t *testing.T) {
	idx := newIndex(t, "SPO", "OSP")
	_, err := idx.Add(tuple.Of(id(1), id(2), id(3)))
	require.NoError(t, err)

	require.NoError(t, idx.Clear())
	empty, err := idx.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestUsageErrors(t *testing.T) {
	idx := newIndex(t, "SPO", "SPO")

	assert.Panics(t, func() { _, _ = idx.Add(tuple.Of(id(1), id(2))) })
	assert.Panics(t, func() { _, _ = idx.Find(tuple.Of(star, star, star, star)) })

	_, err := idx.Add(tuple.Of(id(1), star, id(3)))
	assert.True(t, errors.Is(err, store.ErrUsage))
}

func TestNewRejectsWrongKeyLength(t *testing.T) {
	s, err := storage.NewBadgerStorage(storage.BadgerConfig{InMemory: true, Logger: logging.Nop()})
	require.NoError(t, err)
	defer s.Close()

	ri, err := s.RangeIndex("SPO", Factory(4))
	require.NoError(t, err)
	_, err = New("SPO", colmap.MustNew("SPO", "SPO"), ri)
	assert.True(t, errors.Is(err, store.ErrConfig))
}

func TestIncrement(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x02}, increment([]byte{0x00, 0x01}))
	assert.Equal(t, []byte{0x01}, increment([]byte{0x00, 0xFF}))
	assert.Nil(t, increment([]byte{0xFF, 0xFF}))
}
