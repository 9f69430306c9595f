package tdb

import (
	"sync"

	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// ControlPolicy chooses how a Store admits concurrent readers and writers
type ControlPolicy int

const (
	// ControlMRSW admits many readers or one writer. Writers queue behind each
	// other; a writer that finds open iterators fails with
	// store.ErrConcurrentModification instead of waiting.
	ControlMRSW ControlPolicy = iota

	// ControlNone performs no admission; the caller serializes access.
	ControlNone
)

func (p ControlPolicy) String() string {
	switch p {
	case ControlMRSW:
		return "mrsw"
	case ControlNone:
		return "none"
	}
	return "unknown"
}

type control interface {
	// beginWrite admits a writer; the returned func ends the write
	beginWrite() (func(), error)
	// beginRead admits a reader, waiting out any write in progress
	beginRead() func()
	// exclusive waits for every reader and writer to finish
	exclusive() func()
}

func newControl(p ControlPolicy) control {
	if p == ControlNone {
		return noControl{}
	}
	return &mrsw{}
}

type mrsw struct {
	writer sync.Mutex
	rw     sync.RWMutex
}

func (m *mrsw) beginWrite() (func(), error) {
	m.writer.Lock()
	if !m.rw.TryLock() {
		m.writer.Unlock()
		return nil, store.ErrConcurrentModification
	}
	return func() {
		m.rw.Unlock()
		m.writer.Unlock()
	}, nil
}

func (m *mrsw) beginRead() func() {
	m.rw.RLock()
	return m.rw.RUnlock
}

func (m *mrsw) exclusive() func() {
	m.writer.Lock()
	m.rw.Lock()
	return func() {
		m.rw.Unlock()
		m.writer.Unlock()
	}
}

type noControl struct{}

func (noControl) beginWrite() (func(), error) { return func() {}, nil }
func (noControl) beginRead() func()           { return func() {} }
func (noControl) exclusive() func()           { return func() {} }
