package store

import (
	"fmt"
)

// Record is the physical unit stored in a RangeIndex: a fixed-length key and
// an optional fixed-length value.
type Record struct {
	Key   []byte
	Value []byte
}

// RecordFactory describes the shape of the records held by one RangeIndex.
type RecordFactory struct {
	KeyLength   int
	ValueLength int
}

// NewRecordFactory creates a factory for records with the given key and value lengths
func NewRecordFactory(keyLength, valueLength int) RecordFactory {
	return RecordFactory{KeyLength: keyLength, ValueLength: valueLength}
}

// HasValue reports whether records carry a value part.
func (f RecordFactory) HasValue() bool {
	return f.ValueLength > 0
}

// Check verifies that a record matches the factory's shape.
func (f RecordFactory) Check(r Record) error {
	if len(r.Key) != f.KeyLength {
		return fmt.Errorf("%w: record key is %d bytes, index expects %d", ErrUsage, len(r.Key), f.KeyLength)
	}
	if len(r.Value) != f.ValueLength {
		return fmt.Errorf("%w: record value is %d bytes, index expects %d", ErrUsage, len(r.Value), f.ValueLength)
	}
	return nil
}

func (f RecordFactory) String() string {
	return fmt.Sprintf("record[key=%d,value=%d]", f.KeyLength, f.ValueLength)
}

// RangeIndex is an ordered, persistent record store. Keys are compared
// lexicographically as unsigned bytes.
type RangeIndex interface {
	// Factory returns the record shape of this index
	Factory() RecordFactory

	// Find returns the record stored under key
	Find(key []byte) (Record, bool, error)

	// Contains reports whether a record with this key exists
	Contains(key []byte) (bool, error)

	// Insert stores a record. It returns false if a record with the same key
	// was already present; its value is then replaced.
	Insert(r Record) (bool, error)

	// Delete removes the record with this key and reports whether it existed
	Delete(key []byte) (bool, error)

	// Iterate returns the records with min <= key < max, in key order.
	// A nil min starts at the first key, a nil max runs to the last key.
	Iterate(min, max []byte) (RecordIterator, error)

	// Size counts the records in the index
	Size() (int64, error)

	// IsEmpty reports whether the index holds no records
	IsEmpty() (bool, error)

	// Clear removes every record
	Clear() error

	// Sync flushes buffered writes to stable storage
	Sync() error

	// Close releases the index; it is unusable afterwards
	Close() error
}

// RecordIterator iterates over records in key order
type RecordIterator interface {
	// Next advances to the next record
	Next() bool

	// Record returns the current record. The returned slices are owned by
	// the caller.
	Record() Record

	// Err returns the first error encountered during iteration
	Err() error

	// Close releases the iterator
	Close() error
}

// ObjectFile stores variable-length byte blobs under allocated identifiers.
type ObjectFile interface {
	// Write stores data and returns its newly allocated identifier
	Write(data []byte) (uint64, error)

	// Read returns the data stored under id
	Read(id uint64) ([]byte, error)

	// Sync flushes buffered writes to stable storage
	Sync() error

	// Close releases the object file
	Close() error
}

// Storage is one storage engine instance at a location. It hands out named
// range indexes and object files; each name is an independent key space.
type Storage interface {
	// RangeIndex opens (creating if absent) the range index with this name
	RangeIndex(name string, factory RecordFactory) (RangeIndex, error)

	// ObjectFile opens (creating if absent) the object file with this name
	ObjectFile(name string) (ObjectFile, error)

	// Sync flushes writes to disk
	Sync() error

	// Close closes the storage
	Close() error
}
