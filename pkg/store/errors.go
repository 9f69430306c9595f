package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("tdb: not found")
	ErrClosed   = errors.New("tdb: closed")

	// ErrUsage marks programmer-contract violations such as a tuple whose
	// arity does not match the table it is written to.
	ErrUsage = errors.New("tdb: usage error")

	// ErrConfig marks invalid or conflicting configuration, detected before
	// any table is usable.
	ErrConfig = errors.New("tdb: configuration error")

	// ErrStorage marks a failure reported by the underlying storage engine.
	ErrStorage = errors.New("tdb: storage failure")

	// ErrInconsistent marks indexes that no longer agree with each other or
	// with the node table.
	ErrInconsistent = errors.New("tdb: index inconsistency")

	ErrConcurrentModification = errors.New("tdb: concurrent modification")
)

// StorageError wraps an engine error with the operation that produced it.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
