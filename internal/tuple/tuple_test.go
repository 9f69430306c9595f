package tuple

import (
	"testing"

	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(n uint64) nodeid.NodeID {
	return nodeid.New(nodeid.KindPtr, n)
}

func TestTupleEquality(t *testing.T) {
	a := Of(id(1), id(2), id(3))
	b := Of(id(1), id(2), id(3))
	c := Of(id(1), id(2), id(3), id(4))

	assert.Equal(t, a, b)
	assert.True(t, a == b)
	assert.False(t, a == Of(id(1), id(2)))
	assert.NotEqual(t, a, c)

	set := map[Tuple]bool{a: true}
	assert.True(t, set[b])
	assert.False(t, set[c])
}

func TestTupleAccess(t *testing.T) {
	tp := Of(id(5), id(6), id(7))
	assert.Equal(t, 3, tp.Len())
	assert.Equal(t, id(6), tp.Get(1))
	assert.Panics(t, func() { tp.Get(3) })

	s := tp.Slice()
	s[0] = id(99)
	assert.Equal(t, id(5), tp.Get(0), "Slice must copy")

	assert.Panics(t, func() { Of(make([]nodeid.NodeID, MaxArity+1)...) })
}

func TestPatternHelpers(t *testing.T) {
	p := Of(id(1), nodeid.Any, id(3))
	assert.Equal(t, 2, p.CountBound())
	assert.False(t, p.IsConcrete())
	assert.Equal(t, 0, Any(3).CountBound())

	assert.True(t, Of(id(1), id(2), id(3)).Matches(p))
	assert.False(t, Of(id(1), id(2), id(4)).Matches(p))
	assert.False(t, Of(id(1), id(3)).Matches(p))
}

func TestIterators(t *testing.T) {
	a, b, c := Of(id(1)), Of(id(2)), Of(id(3))

	got, err := Collect(FromSlice(a, b, c))
	require.NoError(t, err)
	assert.Equal(t, []Tuple{a, b, c}, got)

	got, err = Collect(Filter(FromSlice(a, b, c), func(t Tuple) bool { return t != b }))
	require.NoError(t, err)
	assert.Equal(t, []Tuple{a, c}, got)

	got, err = Collect(Empty())
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := Count(FromSlice(a, b))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
