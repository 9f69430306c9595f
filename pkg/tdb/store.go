// Package tdb is a quad store over multi-index tuple tables.
//
// Quads in the default graph are kept in the triple table, quads in named
// graphs in the quad table. Terms are interned into a shared node table.
package tdb

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/setup"
	"github.com/aleksaelezovic/trigo-tdb/internal/tupletable"
	"github.com/aleksaelezovic/trigo-tdb/pkg/params"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Logger is the structured logger a Store reports through
type Logger = logging.Logger

type options struct {
	logger  Logger
	control ControlPolicy
}

type Option func(*options)

func WithLogger(l Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithControl(p ControlPolicy) Option {
	return func(o *options) { o.control = p }
}

// Store is an open quad store
type Store struct {
	c        *setup.Components
	triples  *tupletable.NodeTupleTable
	quads    *tupletable.NodeTupleTable
	prefixes *tupletable.NodeTupleTable
	metrics  *metrics.Metrics
	log      Logger
	ctl      control
	closed   atomic.Bool
}

// Open opens the store in dir, creating it if needed. app may be nil.
func Open(dir string, app *params.StoreParams, opts ...Option) (*Store, error) {
	return open(setup.Dir(dir), app, opts)
}

// OpenMem opens a store that lives in memory until Close.
func OpenMem(app *params.StoreParams, opts ...Option) (*Store, error) {
	return open(setup.Mem(), app, opts)
}

func open(loc setup.Location, app *params.StoreParams, opts []Option) (*Store, error) {
	o := options{control: ControlMRSW}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.logger)
	m := metrics.New()

	c, err := setup.Build(loc, app, setup.Options{Logger: log, Metrics: m})
	if err != nil {
		return nil, err
	}
	return &Store{
		c:        c,
		triples:  tupletable.NewNodeTupleTable(c.Triples, c.Nodes),
		quads:    tupletable.NewNodeTupleTable(c.Quads, c.Nodes),
		prefixes: tupletable.NewNodeTupleTable(c.Prefixes, c.Nodes),
		metrics:  m,
		log:      log,
		ctl:      newControl(o.control),
	}, nil
}

func (s *Store) write(fn func() error) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	done, err := s.ctl.beginWrite()
	if err != nil {
		return err
	}
	defer done()
	if s.closed.Load() {
		return store.ErrClosed
	}
	return fn()
}

func (s *Store) read(fn func() error) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	done := s.ctl.beginRead()
	defer done()
	if s.closed.Load() {
		return store.ErrClosed
	}
	return fn()
}

func checkQuad(q *rdf.Quad) error {
	if q == nil || q.Subject == nil || q.Predicate == nil || q.Object == nil {
		return fmt.Errorf("%w: quad needs subject, predicate and object", store.ErrUsage)
	}
	return nil
}

// Add stores q and reports whether it was new. A nil graph is the default graph.
func (s *Store) Add(q *rdf.Quad) (bool, error) {
	if err := checkQuad(q); err != nil {
		return false, err
	}
	var added bool
	err := s.write(func() (err error) {
		if q.Graph == nil || rdf.IsDefaultGraph(q.Graph) {
			added, err = s.triples.Add(q.Subject, q.Predicate, q.Object)
		} else {
			added, err = s.quads.Add(q.Graph, q.Subject, q.Predicate, q.Object)
		}
		return err
	})
	return added, err
}

// Delete removes q and reports whether it was present
func (s *Store) Delete(q *rdf.Quad) (bool, error) {
	if err := checkQuad(q); err != nil {
		return false, err
	}
	var deleted bool
	err := s.write(func() (err error) {
		if q.Graph == nil || rdf.IsDefaultGraph(q.Graph) {
			deleted, err = s.triples.Delete(q.Subject, q.Predicate, q.Object)
		} else {
			deleted, err = s.quads.Delete(q.Graph, q.Subject, q.Predicate, q.Object)
		}
		return err
	})
	return deleted, err
}

// AddTriple adds t to the default graph
func (s *Store) AddTriple(t *rdf.Triple) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("%w: nil triple", store.ErrUsage)
	}
	return s.Add(rdf.NewQuad(t.Subject, t.Predicate, t.Object, rdf.NewDefaultGraph()))
}

// DeleteTriple removes t from the default graph
func (s *Store) DeleteTriple(t *rdf.Triple) (bool, error) {
	if t == nil {
		return false, fmt.Errorf("%w: nil triple", store.ErrUsage)
	}
	return s.Delete(rdf.NewQuad(t.Subject, t.Predicate, t.Object, rdf.NewDefaultGraph()))
}

func (s *Store) Contains(q *rdf.Quad) (bool, error) {
	if err := checkQuad(q); err != nil {
		return false, err
	}
	var found bool
	err := s.read(func() (err error) {
		if q.Graph == nil || rdf.IsDefaultGraph(q.Graph) {
			found, err = s.triples.Contains(q.Subject, q.Predicate, q.Object)
		} else {
			found, err = s.quads.Contains(q.Graph, q.Subject, q.Predicate, q.Object)
		}
		return err
	})
	return found, err
}

// Find returns the quads matching the pattern; nil matches anything. The
// default graph searches the triple table, a named graph the quad table, and
// a nil graph both. Under ControlMRSW the iterator holds read admission until
// it is closed.
func (s *Store) Find(g, subj, pred, obj rdf.Term) (*QuadIterator, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	done := s.ctl.beginRead()
	if s.closed.Load() {
		done()
		return nil, store.ErrClosed
	}

	qi := &QuadIterator{done: done}
	if g == nil || rdf.IsDefaultGraph(g) {
		it, err := s.triples.Find(subj, pred, obj)
		if err != nil {
			done()
			return nil, err
		}
		qi.parts = append(qi.parts, it)
	}
	if !rdf.IsDefaultGraph(g) {
		it, err := s.quads.Find(g, subj, pred, obj)
		if err != nil {
			_ = qi.Close()
			return nil, err
		}
		qi.parts = append(qi.parts, it)
	}
	return qi, nil
}

// Count is the number of quads in all graphs
func (s *Store) Count() (int64, error) {
	var n int64
	err := s.read(func() error {
		t, err := s.c.Triples.Size()
		if err != nil {
			return err
		}
		q, err := s.c.Quads.Size()
		if err != nil {
			return err
		}
		n = t + q
		return nil
	})
	return n, err
}

// Sync flushes all tables to stable storage
func (s *Store) Sync() error {
	return s.read(s.c.Sync)
}

// Close waits for open iterators and writes, then releases the store.
// Closing again is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	done := s.ctl.exclusive()
	defer done()
	s.log.Info("closing store", "location", s.c.Location.String())
	return s.c.Close()
}

// Params returns the params the store was opened with after resolution
func (s *Store) Params() *params.StoreParams {
	return s.c.Params
}

// Location is the store directory, "" for an in-memory store
func (s *Store) Location() string {
	return s.c.Location.Path()
}

// Collectors returns this store's prometheus collectors
func (s *Store) Collectors() []prometheus.Collector {
	cs := s.metrics.Collectors()
	if ec, ok := s.c.Storage.(interface{ Collector() prometheus.Collector }); ok {
		cs = append(cs, ec.Collector())
	}
	return cs
}

// Register adds every collector of this store to reg
func (s *Store) Register(reg prometheus.Registerer) error {
	var errs []error
	for _, c := range s.Collectors() {
		errs = append(errs, reg.Register(c))
	}
	return errors.Join(errs...)
}

// QuadIterator iterates over found quads
type QuadIterator struct {
	parts []*tupletable.TermIterator
	cur   int
	quad  *rdf.Quad
	err   error
	done  func()
}

func (qi *QuadIterator) Next() bool {
	for qi.err == nil && qi.cur < len(qi.parts) {
		it := qi.parts[qi.cur]
		if it.Next() {
			terms := it.Terms()
			if len(terms) == 3 {
				qi.quad = rdf.NewQuad(terms[0], terms[1], terms[2], rdf.NewDefaultGraph())
			} else {
				qi.quad = rdf.NewQuad(terms[1], terms[2], terms[3], terms[0])
			}
			return true
		}
		qi.err = it.Err()
		qi.cur++
	}
	return false
}

func (qi *QuadIterator) Quad() *rdf.Quad {
	return qi.quad
}

func (qi *QuadIterator) Err() error {
	return qi.err
}

// Close releases the iterator and its read admission
func (qi *QuadIterator) Close() error {
	if qi.done == nil {
		return nil
	}
	var errs []error
	for _, it := range qi.parts {
		errs = append(errs, it.Close())
	}
	qi.done()
	qi.done = nil
	return errors.Join(errs...)
}
