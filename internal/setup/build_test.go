package setup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/internal/tuple"
	"github.com/aleksaelezovic/trigo-tdb/pkg/params"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var opts = Options{Logger: logging.Nop()}

func mustParams(t *testing.T, b *params.Builder) *params.StoreParams {
	t.Helper()
	p, err := b.Build()
	require.NoError(t, err)
	return p
}

func TestBuildMem(t *testing.T) {
	for _, family := range []params.IndexFamily{params.FamilyBadger, params.FamilyPebble} {
		t.Run(string(family), func(t *testing.T) {
			c, err := Build(Mem(), mustParams(t, params.NewBuilder().IndexFamily(family)), opts)
			require.NoError(t, err)
			defer c.Close()

			assert.True(t, c.Created)
			assert.Equal(t, 3, c.Triples.Arity())
			assert.Equal(t, 4, c.Quads.Arity())
			assert.Equal(t, 3, c.Prefixes.Arity())
			assert.Len(t, c.Triples.Indexes(), 3)
			assert.Len(t, c.Quads.Indexes(), 6)
			assert.Equal(t, "SPO", c.Triples.Primary().Name())
			assert.Equal(t, family, c.Params.IndexFamily())
		})
	}
}

func TestCreateThenReopen(t *testing.T) {
	dir := t.TempDir()
	loc := Dir(dir)

	c, err := Build(loc, mustParams(t, params.NewBuilder().TripleIndexes("SPO", "POS")), opts)
	require.NoError(t, err)
	assert.True(t, c.Created)
	assert.FileExists(t, loc.ParamsFile())

	s, err := c.Nodes.Intern(rdf.NewNamedNode("http://example.org/s"))
	require.NoError(t, err)
	p, err := c.Nodes.Intern(rdf.NewNamedNode("http://example.org/p"))
	require.NoError(t, err)
	triple := tuple.Of(s, p, nodeid.New(nodeid.KindInteger, 1))
	_, err = c.Triples.Add(triple)
	require.NoError(t, err)
	require.NoError(t, c.Sync())
	require.NoError(t, c.Close())

	// cache sizes may change between opens
	c, err = Build(loc, mustParams(t, params.NewBuilder().Node2NodeIDCacheSize(7).NodeMissCacheSize(0)), opts)
	require.NoError(t, err)
	assert.False(t, c.Created)
	assert.Equal(t, 7, c.Params.Node2NodeIDCacheSize())
	assert.Equal(t, []string{"SPO", "POS"}, c.Params.TripleIndexes(), "layout comes from the location")

	found, err := c.Triples.Contains(triple)
	require.NoError(t, err)
	assert.True(t, found)
	require.NoError(t, c.Close())
}

func TestReopenWithOtherOrderingsFails(t *testing.T) {
	loc := Dir(t.TempDir())
	c, err := Build(loc, nil, opts)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = Build(loc, mustParams(t, params.NewBuilder().TripleIndexes("SPO", "PSO")), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConfig))

	_, err = Build(loc, mustParams(t, params.NewBuilder().IndexFamily(params.FamilyPebble)), opts)
	assert.True(t, errors.Is(err, store.ErrConfig))
}

func TestFamilyIsRecorded(t *testing.T) {
	loc := Dir(t.TempDir())
	c, err := Build(loc, mustParams(t, params.NewBuilder().IndexFamily(params.FamilyPebble)), opts)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Build(loc, nil, opts)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, params.FamilyPebble, c.Params.IndexFamily())
}

func TestEmptyParamsFileFails(t *testing.T) {
	loc := Dir(t.TempDir())
	c, err := Build(loc, mustParams(t, params.NewBuilder().IndexFamily(params.FamilyPebble).TripleIndexes("SPO")), opts)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	require.NoError(t, os.Truncate(loc.ParamsFile(), 0))
	_, err = Build(loc, nil, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConfig))
	assert.Contains(t, err.Error(), "index_family")
}

func TestPartialParamsFileFails(t *testing.T) {
	loc := Dir(t.TempDir())
	c, err := Build(loc, mustParams(t, params.NewBuilder().TripleIndexes("SPO", "POS")), opts)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	require.NoError(t, os.WriteFile(loc.ParamsFile(), []byte("index_family: badger\n"), 0o600))
	_, err = Build(loc, nil, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConfig))
}

func TestFailedCreateLeavesNoData(t *testing.T) {
	for _, family := range []params.IndexFamily{params.FamilyBadger, params.FamilyPebble} {
		t.Run(string(family), func(t *testing.T) {
			loc := Dir(t.TempDir())
			app := mustParams(t, params.NewBuilder().IndexFamily(family))

			writeParams = func(string, *params.StoreParams) error { return errors.New("disk full") }
			_, err := Build(loc, app, opts)
			writeParams = params.WriteFile
			require.Error(t, err)
			assert.True(t, errors.Is(err, store.ErrConfig))
			assert.NoDirExists(t, loc.DataDir())
			assert.NoFileExists(t, loc.ParamsFile())

			c, err := Build(loc, app, opts)
			require.NoError(t, err, "the location can be created again")
			defer c.Close()
			assert.True(t, c.Created)
			assert.FileExists(t, loc.ParamsFile())
		})
	}
}

func TestDataWithoutParamsFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "MANIFEST"), []byte("x"), 0o600))

	_, err := Build(Dir(dir), nil, opts)
	assert.True(t, errors.Is(err, store.ErrConfig))
}

func TestUnwritableLocation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain-file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := Build(Dir(file), nil, opts)
	assert.True(t, errors.Is(err, store.ErrConfig))
}

func TestLocation(t *testing.T) {
	assert.True(t, Mem().IsMem())
	assert.Equal(t, "mem:", Mem().String())

	loc := Dir("/tmp/db/")
	assert.False(t, loc.IsMem())
	assert.Equal(t, "/tmp/db", loc.Path())
	assert.Equal(t, "/tmp/db/tdb.cfg", loc.ParamsFile())
	assert.Equal(t, "/tmp/db/data", loc.DataDir())
}
