package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// PebbleConfig selects the pebble options a location is opened with
type PebbleConfig struct {
	// Dir is the data directory; ignored when InMemory is set
	Dir            string
	InMemory       bool
	BlockSize      int
	BlockCacheSize int64
	SyncWrites     bool
	Logger         logging.Logger
}

// PebbleStorage implements store.Storage on a pebble DB, laid out like
// BadgerStorage: one key space per range index or object file.
type PebbleStorage struct {
	db       *pebble.DB
	writeOpt *pebble.WriteOptions
	closed   atomic.Bool
}

func NewPebbleStorage(cfg PebbleConfig) (*PebbleStorage, error) {
	opts := &pebble.Options{
		Logger: logging.NewEngineLogger(cfg.Logger, "pebble"),
	}
	dir := cfg.Dir
	if cfg.InMemory {
		opts.FS = vfs.NewMem()
		dir = ""
	}
	if cfg.BlockSize > 0 {
		opts.Levels = []pebble.LevelOptions{{BlockSize: cfg.BlockSize}}
	}
	if cfg.BlockCacheSize > 0 {
		cache := pebble.NewCache(cfg.BlockCacheSize)
		defer cache.Unref()
		opts.Cache = cache
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, store.StorageError("open pebble db", err)
	}

	writeOpt := pebble.NoSync
	if cfg.SyncWrites {
		writeOpt = pebble.Sync
	}
	return &PebbleStorage{db: db, writeOpt: writeOpt}, nil
}

func (s *PebbleStorage) RangeIndex(name string, factory store.RecordFactory) (store.RangeIndex, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	ks, err := newKeyspace(name)
	if err != nil {
		return nil, err
	}
	return &pebbleIndex{s: s, ks: ks, factory: factory}, nil
}

func (s *PebbleStorage) ObjectFile(name string) (store.ObjectFile, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	ks, err := newKeyspace(name)
	if err != nil {
		return nil, err
	}

	o := &pebbleObjects{s: s, ks: ks, seqKey: sequenceKey(name)}
	val, closer, err := s.db.Get(o.seqKey)
	switch {
	case err == nil:
		o.next = binary.BigEndian.Uint64(val)
		_ = closer.Close()
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return nil, store.StorageError("pebble sequence", err)
	}
	return o, nil
}

func (s *PebbleStorage) Sync() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return store.StorageError("pebble sync", s.db.LogData(nil, pebble.Sync))
}

func (s *PebbleStorage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return store.StorageError("pebble close", s.db.Close())
}

func (s *PebbleStorage) get(key []byte) ([]byte, bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, store.StorageError("pebble get", err)
	}
	defer closer.Close()
	return bytes.Clone(val), true, nil
}

// pebbleIndex implements store.RangeIndex in one key space of a pebble DB.
// Read-then-write in Insert and Delete relies on writers being serialized
// by the caller.
type pebbleIndex struct {
	s       *PebbleStorage
	ks      keyspace
	factory store.RecordFactory
	closed  atomic.Bool
}

func (p *pebbleIndex) Factory() store.RecordFactory {
	return p.factory
}

func (p *pebbleIndex) usable() error {
	if p.closed.Load() || p.s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (p *pebbleIndex) Find(key []byte) (store.Record, bool, error) {
	if err := p.usable(); err != nil {
		return store.Record{}, false, err
	}
	if err := checkKey(p.factory, key); err != nil {
		return store.Record{}, false, err
	}
	val, found, err := p.s.get(p.ks.key(key))
	if err != nil || !found {
		return store.Record{}, false, err
	}
	rec := store.Record{Key: bytes.Clone(key)}
	if p.factory.HasValue() {
		rec.Value = val
	}
	return rec, true, nil
}

func (p *pebbleIndex) Contains(key []byte) (bool, error) {
	_, found, err := p.Find(key)
	return found, err
}

func (p *pebbleIndex) Insert(r store.Record) (bool, error) {
	if err := p.usable(); err != nil {
		return false, err
	}
	if err := p.factory.Check(r); err != nil {
		return false, err
	}
	k := p.ks.key(r.Key)
	_, exists, err := p.s.get(k)
	if err != nil {
		return false, err
	}
	if exists && !p.factory.HasValue() {
		return false, nil
	}
	if err := p.s.db.Set(k, r.Value, p.s.writeOpt); err != nil {
		return false, store.StorageError("pebble set", err)
	}
	return !exists, nil
}

func (p *pebbleIndex) Delete(key []byte) (bool, error) {
	if err := p.usable(); err != nil {
		return false, err
	}
	if err := checkKey(p.factory, key); err != nil {
		return false, err
	}
	k := p.ks.key(key)
	_, exists, err := p.s.get(k)
	if err != nil || !exists {
		return false, err
	}
	if err := p.s.db.Delete(k, p.s.writeOpt); err != nil {
		return false, store.StorageError("pebble delete", err)
	}
	return true, nil
}

func (p *pebbleIndex) Iterate(min, max []byte) (store.RecordIterator, error) {
	if err := p.usable(); err != nil {
		return nil, err
	}
	lo, hi := p.ks.bounds(min, max)
	it, err := p.s.db.NewIter(&pebble.IterOptions{
		LowerBound: lo,
		UpperBound: hi,
	})
	if err != nil {
		return nil, store.StorageError("pebble iterator", err)
	}
	return &pebbleIterator{it: it, ks: p.ks, withValue: p.factory.HasValue()}, nil
}

func (p *pebbleIndex) Size() (int64, error) {
	it, err := p.Iterate(nil, nil)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	var n int64
	for it.Next() {
		n++
	}
	return n, it.Err()
}

func (p *pebbleIndex) IsEmpty() (bool, error) {
	it, err := p.Iterate(nil, nil)
	if err != nil {
		return false, err
	}
	defer it.Close()
	return !it.Next(), it.Err()
}

func (p *pebbleIndex) Clear() error {
	if err := p.usable(); err != nil {
		return err
	}
	return store.StorageError("pebble delete range", p.s.db.DeleteRange(p.ks.prefix, p.ks.end, p.s.writeOpt))
}

func (p *pebbleIndex) Sync() error {
	if err := p.usable(); err != nil {
		return err
	}
	return p.s.Sync()
}

func (p *pebbleIndex) Close() error {
	p.closed.Store(true)
	return nil
}

type pebbleIterator struct {
	it        *pebble.Iterator
	ks        keyspace
	withValue bool
	started   bool
	closed    bool
	cur       store.Record
	err       error
}

func (i *pebbleIterator) Next() bool {
	if i.closed || i.err != nil {
		return false
	}
	if !i.started {
		i.it.First()
		i.started = true
	} else {
		i.it.Next()
	}
	if !i.it.Valid() {
		if err := i.it.Error(); err != nil {
			i.err = store.StorageError("pebble iterate", err)
		}
		return false
	}
	i.cur = store.Record{Key: i.ks.strip(i.it.Key())}
	if i.withValue {
		i.cur.Value = bytes.Clone(i.it.Value())
	}
	return true
}

func (i *pebbleIterator) Record() store.Record {
	return i.cur
}

func (i *pebbleIterator) Err() error {
	return i.err
}

func (i *pebbleIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	return store.StorageError("pebble iterator close", i.it.Close())
}

// pebbleObjects implements store.ObjectFile; the next id is persisted in the
// same batch as each write.
type pebbleObjects struct {
	s      *PebbleStorage
	ks     keyspace
	seqKey []byte

	mu   sync.Mutex
	next uint64
}

func (o *pebbleObjects) Write(data []byte) (uint64, error) {
	if o.s.closed.Load() {
		return 0, store.ErrClosed
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	var next [8]byte
	binary.BigEndian.PutUint64(next[:], id+1)

	b := o.s.db.NewBatch()
	defer b.Close()
	if err := b.Set(o.ks.key(objectKey(id)), data, nil); err != nil {
		return 0, store.StorageError("pebble object write", err)
	}
	if err := b.Set(o.seqKey, next[:], nil); err != nil {
		return 0, store.StorageError("pebble object write", err)
	}
	if err := b.Commit(o.s.writeOpt); err != nil {
		return 0, store.StorageError("pebble object commit", err)
	}
	o.next = id + 1
	return id, nil
}

func (o *pebbleObjects) Read(id uint64) ([]byte, error) {
	if o.s.closed.Load() {
		return nil, store.ErrClosed
	}
	data, found, err := o.s.get(o.ks.key(objectKey(id)))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("object %d: %w", id, store.ErrNotFound)
	}
	return data, nil
}

func (o *pebbleObjects) Sync() error {
	return o.s.Sync()
}

func (o *pebbleObjects) Close() error {
	return nil
}
