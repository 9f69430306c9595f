package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type family struct {
	name string
	open func(t *testing.T, dir string, inMemory bool) store.Storage
}

var families = []family{
	{"badger", func(t *testing.T, dir string, inMemory bool) store.Storage {
		s, err := NewBadgerStorage(BadgerConfig{Dir: dir, InMemory: inMemory, Logger: logging.Nop()})
		require.NoError(t, err)
		return s
	}},
	{"pebble", func(t *testing.T, dir string, inMemory bool) store.Storage {
		s, err := NewPebbleStorage(PebbleConfig{Dir: dir, InMemory: inMemory, Logger: logging.Nop()})
		require.NoError(t, err)
		return s
	}},
}

func key(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func drain(t *testing.T, it store.RecordIterator) [][]byte {
	t.Helper()
	defer it.Close()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, it.Record().Key)
	}
	require.NoError(t, it.Err())
	return keys
}

func TestRangeIndexInsertDelete(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			idx, err := s.RangeIndex("SPO", store.NewRecordFactory(8, 0))
			require.NoError(t, err)

			empty, err := idx.IsEmpty()
			require.NoError(t, err)
			assert.True(t, empty)

			added, err := idx.Insert(store.Record{Key: key(7)})
			require.NoError(t, err)
			assert.True(t, added)

			added, err = idx.Insert(store.Record{Key: key(7)})
			require.NoError(t, err)
			assert.False(t, added, "second insert of the same key is a no-op")

			found, err := idx.Contains(key(7))
			require.NoError(t, err)
			assert.True(t, found)

			deleted, err := idx.Delete(key(7))
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = idx.Delete(key(7))
			require.NoError(t, err)
			assert.False(t, deleted)

			size, err := idx.Size()
			require.NoError(t, err)
			assert.Zero(t, size)
		})
	}
}

func TestRangeIndexValues(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			idx, err := s.RangeIndex("node2id", store.NewRecordFactory(8, 8))
			require.NoError(t, err)

			_, err = idx.Insert(store.Record{Key: key(1), Value: key(100)})
			require.NoError(t, err)

			rec, found, err := idx.Find(key(1))
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, key(100), rec.Value)

			_, found, err = idx.Find(key(2))
			require.NoError(t, err)
			assert.False(t, found)

			_, err = idx.Insert(store.Record{Key: key(1)})
			assert.True(t, errors.Is(err, store.ErrUsage), "missing value must be rejected")
		})
	}
}

func TestRangeIndexIterateOrderAndBounds(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			idx, err := s.RangeIndex("POS", store.NewRecordFactory(8, 0))
			require.NoError(t, err)
			for _, n := range []uint64{5, 1, 9, 3, 7} {
				_, err := idx.Insert(store.Record{Key: key(n)})
				require.NoError(t, err)
			}

			it, err := idx.Iterate(nil, nil)
			require.NoError(t, err)
			assert.Equal(t, [][]byte{key(1), key(3), key(5), key(7), key(9)}, drain(t, it))

			it, err = idx.Iterate(key(3), key(7))
			require.NoError(t, err)
			assert.Equal(t, [][]byte{key(3), key(5)}, drain(t, it), "max is exclusive")

			it, err = idx.Iterate(key(6), nil)
			require.NoError(t, err)
			assert.Equal(t, [][]byte{key(7), key(9)}, drain(t, it))
		})
	}
}

func TestKeySpacesAreIsolated(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			// "SP" is a byte prefix of "SPO"; the separator keeps them apart
			a, err := s.RangeIndex("SP", store.NewRecordFactory(8, 0))
			require.NoError(t, err)
			b, err := s.RangeIndex("SPO", store.NewRecordFactory(8, 0))
			require.NoError(t, err)

			_, err = a.Insert(store.Record{Key: key(1)})
			require.NoError(t, err)
			_, err = b.Insert(store.Record{Key: key(2)})
			require.NoError(t, err)

			it, err := a.Iterate(nil, nil)
			require.NoError(t, err)
			assert.Equal(t, [][]byte{key(1)}, drain(t, it))

			require.NoError(t, a.Clear())
			empty, err := a.IsEmpty()
			require.NoError(t, err)
			assert.True(t, empty)

			size, err := b.Size()
			require.NoError(t, err)
			assert.Equal(t, int64(1), size, "clearing one index leaves the other alone")
		})
	}
}

func TestKeyLengthChecked(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			idx, err := s.RangeIndex("SPO", store.NewRecordFactory(24, 0))
			require.NoError(t, err)

			_, err = idx.Insert(store.Record{Key: key(1)})
			assert.True(t, errors.Is(err, store.ErrUsage))
			_, err = idx.Contains(key(1))
			assert.True(t, errors.Is(err, store.ErrUsage))
		})
	}
}

func TestInvalidNames(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			_, err := s.RangeIndex("", store.NewRecordFactory(8, 0))
			assert.True(t, errors.Is(err, store.ErrConfig))
			_, err = s.ObjectFile("bad\x00name")
			assert.True(t, errors.Is(err, store.ErrConfig))
		})
	}
}

func TestObjectFile(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			defer s.Close()

			objs, err := s.ObjectFile("nodes")
			require.NoError(t, err)

			ids := make(map[uint64]string)
			for i := 0; i < 10; i++ {
				data := fmt.Sprintf("object-%d", i)
				id, err := objs.Write([]byte(data))
				require.NoError(t, err)
				_, dup := ids[id]
				require.False(t, dup, "id %d handed out twice", id)
				ids[id] = data
			}
			for id, data := range ids {
				got, err := objs.Read(id)
				require.NoError(t, err)
				assert.Equal(t, data, string(got))
			}

			_, err = objs.Read(1 << 40)
			assert.True(t, errors.Is(err, store.ErrNotFound))
		})
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			dir := t.TempDir()

			s := f.open(t, dir, false)
			idx, err := s.RangeIndex("SPO", store.NewRecordFactory(8, 0))
			require.NoError(t, err)
			_, err = idx.Insert(store.Record{Key: key(42)})
			require.NoError(t, err)
			objs, err := s.ObjectFile("nodes")
			require.NoError(t, err)
			first, err := objs.Write([]byte("alice"))
			require.NoError(t, err)
			require.NoError(t, s.Sync())
			require.NoError(t, s.Close())

			s = f.open(t, dir, false)
			defer s.Close()

			idx, err = s.RangeIndex("SPO", store.NewRecordFactory(8, 0))
			require.NoError(t, err)
			found, err := idx.Contains(key(42))
			require.NoError(t, err)
			assert.True(t, found)

			objs, err = s.ObjectFile("nodes")
			require.NoError(t, err)
			data, err := objs.Read(first)
			require.NoError(t, err)
			assert.Equal(t, "alice", string(data))

			second, err := objs.Write([]byte("bob"))
			require.NoError(t, err)
			assert.NotEqual(t, first, second, "ids are not reused after reopen")
		})
	}
}

func TestClosedStorage(t *testing.T) {
	for _, f := range families {
		t.Run(f.name, func(t *testing.T) {
			s := f.open(t, "", true)
			idx, err := s.RangeIndex("SPO", store.NewRecordFactory(8, 0))
			require.NoError(t, err)
			require.NoError(t, s.Close())
			require.NoError(t, s.Close(), "close is idempotent")

			_, err = idx.Insert(store.Record{Key: key(1)})
			assert.True(t, errors.Is(err, store.ErrClosed))
			_, err = s.RangeIndex("POS", store.NewRecordFactory(8, 0))
			assert.True(t, errors.Is(err, store.ErrClosed))
		})
	}
}

func TestPebbleCollector(t *testing.T) {
	s, err := NewPebbleStorage(PebbleConfig{InMemory: true, Logger: logging.Nop()})
	require.NoError(t, err)
	defer s.Close()

	c := s.Collector()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)
	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, 8, n)
}
