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
	badger "github.com/dgraph-io/badger/v4"
)

const sequenceBandwidth = 1000

// BadgerConfig selects the badger options a location is opened with
type BadgerConfig struct {
	// Dir is the data directory; ignored when InMemory is set
	Dir            string
	InMemory       bool
	BlockSize      int
	BlockCacheSize int64
	SyncWrites     bool
	Logger         logging.Logger
}

// BadgerStorage implements store.Storage using BadgerDB. All range indexes
// and object files of a location share one DB, each in its own key space.
type BadgerStorage struct {
	db       *badger.DB
	inMemory bool

	mu     sync.Mutex
	seqs   map[string]*badger.Sequence
	closed atomic.Bool
}

// NewBadgerStorage creates a new BadgerDB-backed storage
func NewBadgerStorage(cfg BadgerConfig) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
		opts.MemTableSize = 16 << 20
	}
	opts.Logger = logging.NewEngineLogger(cfg.Logger, "badger")
	if cfg.BlockSize > 0 {
		opts.BlockSize = cfg.BlockSize
	}
	if cfg.BlockCacheSize > 0 {
		opts.BlockCacheSize = cfg.BlockCacheSize
	}
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, store.StorageError("open badger db", err)
	}

	return &BadgerStorage{
		db:       db,
		inMemory: cfg.InMemory,
		seqs:     make(map[string]*badger.Sequence),
	}, nil
}

// RangeIndex opens the named range index
func (s *BadgerStorage) RangeIndex(name string, factory store.RecordFactory) (store.RangeIndex, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	ks, err := newKeyspace(name)
	if err != nil {
		return nil, err
	}
	return &badgerIndex{s: s, ks: ks, factory: factory}, nil
}

// ObjectFile opens the named object file
func (s *BadgerStorage) ObjectFile(name string) (store.ObjectFile, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	ks, err := newKeyspace(name)
	if err != nil {
		return nil, err
	}
	seq, err := s.sequence(name)
	if err != nil {
		return nil, err
	}
	return &badgerObjects{s: s, ks: ks, seq: seq}, nil
}

func (s *BadgerStorage) sequence(name string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.seqs[name]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence(sequenceKey(name), sequenceBandwidth)
	if err != nil {
		return nil, store.StorageError("badger sequence", err)
	}
	s.seqs[name] = seq
	return seq, nil
}

// Sync flushes writes to disk
func (s *BadgerStorage) Sync() error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if s.inMemory {
		return nil
	}
	return store.StorageError("badger sync", s.db.Sync())
}

// Close closes the storage
func (s *BadgerStorage) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sequence %s: %w", name, err))
		}
	}
	s.seqs = nil
	s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return store.StorageError("badger close", errors.Join(errs...))
}

// badgerIndex implements store.RangeIndex in one key space of a badger DB
type badgerIndex struct {
	s       *BadgerStorage
	ks      keyspace
	factory store.RecordFactory
	closed  atomic.Bool
}

func (b *badgerIndex) Factory() store.RecordFactory {
	return b.factory
}

func (b *badgerIndex) usable() error {
	if b.closed.Load() || b.s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

// Find retrieves the record stored under key
func (b *badgerIndex) Find(key []byte) (store.Record, bool, error) {
	if err := b.usable(); err != nil {
		return store.Record{}, false, err
	}
	if err := checkKey(b.factory, key); err != nil {
		return store.Record{}, false, err
	}

	var rec store.Record
	found := false
	err := b.s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(b.ks.key(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		rec.Key = bytes.Clone(key)
		if b.factory.HasValue() {
			rec.Value, err = item.ValueCopy(nil)
		}
		return err
	})
	if err != nil {
		return store.Record{}, false, store.StorageError("badger get", err)
	}
	return rec, found, nil
}

func (b *badgerIndex) Contains(key []byte) (bool, error) {
	_, found, err := b.Find(key)
	return found, err
}

// Insert stores a record, reporting whether its key was new
func (b *badgerIndex) Insert(r store.Record) (bool, error) {
	if err := b.usable(); err != nil {
		return false, err
	}
	if err := b.factory.Check(r); err != nil {
		return false, err
	}

	added := false
	err := b.s.db.Update(func(txn *badger.Txn) error {
		k := b.ks.key(r.Key)
		_, err := txn.Get(k)
		switch {
		case err == nil:
			if !b.factory.HasValue() {
				return nil
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			added = true
		default:
			return err
		}
		value := r.Value
		if value == nil {
			value = []byte{}
		}
		return txn.Set(k, value)
	})
	if err != nil {
		return false, store.StorageError("badger insert", err)
	}
	return added, nil
}

// Delete removes a record, reporting whether it existed
func (b *badgerIndex) Delete(key []byte) (bool, error) {
	if err := b.usable(); err != nil {
		return false, err
	}
	if err := checkKey(b.factory, key); err != nil {
		return false, err
	}

	deleted := false
	err := b.s.db.Update(func(txn *badger.Txn) error {
		k := b.ks.key(key)
		if _, err := txn.Get(k); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		deleted = true
		return txn.Delete(k)
	})
	if err != nil {
		return false, store.StorageError("badger delete", err)
	}
	return deleted, nil
}

// Iterate iterates over the key range [min, max)
func (b *badgerIndex) Iterate(min, max []byte) (store.RecordIterator, error) {
	if err := b.usable(); err != nil {
		return nil, err
	}
	lo, hi := b.ks.bounds(min, max)

	txn := b.s.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = b.ks.prefix
	opts.PrefetchValues = b.factory.HasValue()

	return &badgerIterator{
		txn:       txn,
		it:        txn.NewIterator(opts),
		ks:        b.ks,
		seekKey:   lo,
		endKey:    hi,
		withValue: b.factory.HasValue(),
	}, nil
}

func (b *badgerIndex) Size() (int64, error) {
	it, err := b.Iterate(nil, nil)
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

func (b *badgerIndex) IsEmpty() (bool, error) {
	it, err := b.Iterate(nil, nil)
	if err != nil {
		return false, err
	}
	defer it.Close()
	return !it.Next(), it.Err()
}

func (b *badgerIndex) Clear() error {
	if err := b.usable(); err != nil {
		return err
	}
	return store.StorageError("badger drop prefix", b.s.db.DropPrefix(b.ks.prefix))
}

func (b *badgerIndex) Sync() error {
	if err := b.usable(); err != nil {
		return err
	}
	return b.s.Sync()
}

func (b *badgerIndex) Close() error {
	b.closed.Store(true)
	return nil
}

// badgerIterator implements store.RecordIterator using BadgerDB
type badgerIterator struct {
	txn       *badger.Txn
	it        *badger.Iterator
	ks        keyspace
	seekKey   []byte
	endKey    []byte
	withValue bool
	started   bool
	closed    bool
	cur       store.Record
	err       error
}

// Next advances to the next record
func (i *badgerIterator) Next() bool {
	if i.closed || i.err != nil {
		return false
	}
	if !i.started {
		i.it.Seek(i.seekKey)
		i.started = true
	} else {
		i.it.Next()
	}

	if !i.it.Valid() {
		return false
	}

	item := i.it.Item()
	key := item.Key()
	if bytes.Compare(key, i.endKey) >= 0 {
		return false
	}

	i.cur = store.Record{Key: i.ks.strip(key)}
	if i.withValue {
		v, err := item.ValueCopy(nil)
		if err != nil {
			i.err = store.StorageError("badger value", err)
			return false
		}
		i.cur.Value = v
	}
	return true
}

func (i *badgerIterator) Record() store.Record {
	return i.cur
}

func (i *badgerIterator) Err() error {
	return i.err
}

// Close closes the iterator and discards its read transaction
func (i *badgerIterator) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true
	i.it.Close()
	i.txn.Discard()
	return nil
}

// badgerObjects implements store.ObjectFile with ids drawn from a badger sequence
type badgerObjects struct {
	s   *BadgerStorage
	ks  keyspace
	seq *badger.Sequence
}

func objectKey(id uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return b[:]
}

func (o *badgerObjects) Write(data []byte) (uint64, error) {
	if o.s.closed.Load() {
		return 0, store.ErrClosed
	}
	id, err := o.seq.Next()
	if err != nil {
		return 0, store.StorageError("badger sequence next", err)
	}
	err = o.s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(o.ks.key(objectKey(id)), data)
	})
	if err != nil {
		return 0, store.StorageError("badger object write", err)
	}
	return id, nil
}

func (o *badgerObjects) Read(id uint64) ([]byte, error) {
	if o.s.closed.Load() {
		return nil, store.ErrClosed
	}
	var data []byte
	err := o.s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(o.ks.key(objectKey(id)))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("object %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.StorageError("badger object read", err)
	}
	return data, nil
}

func (o *badgerObjects) Sync() error {
	return o.s.Sync()
}

func (o *badgerObjects) Close() error {
	return nil
}
