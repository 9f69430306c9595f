// Package setup assembles the storage stack of a location: the storage
// engine, the node table, and the triple, quad and prefix tables.
package setup

import (
	"errors"
	"fmt"
	"os"

	"github.com/aleksaelezovic/trigo-tdb/internal/colmap"
	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodetable"
	"github.com/aleksaelezovic/trigo-tdb/internal/storage"
	"github.com/aleksaelezovic/trigo-tdb/internal/tupleindex"
	"github.com/aleksaelezovic/trigo-tdb/internal/tupletable"
	"github.com/aleksaelezovic/trigo-tdb/pkg/params"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// Table names, also used as metric labels
const (
	TriplesTable  = "triples"
	QuadsTable    = "quads"
	PrefixesTable = "prefixes"
)

// Components is an assembled storage stack. Close releases all of it.
type Components struct {
	Params   *params.StoreParams
	Location Location
	Storage  store.Storage
	Nodes    nodetable.NodeTable
	Triples  *tupletable.TupleTable
	Quads    *tupletable.TupleTable
	Prefixes *tupletable.TupleTable
	// Created is true when this build made a new location
	Created bool
}

type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Build opens the store at loc, creating it if it does not exist. Params
// resolve as explicit app fields, then those recorded at the location, then
// defaults; a layout field that conflicts with the location is an error.
func Build(loc Location, app *params.StoreParams, opts Options) (*Components, error) {
	log := logging.OrNop(opts.Logger).With("location", loc.String())

	var (
		p       *params.StoreParams
		created bool
		err     error
	)
	if loc.IsMem() {
		if p, err = params.Resolve(app, nil); err != nil {
			return nil, err
		}
		created = true
	} else {
		if p, created, err = resolveOnDisk(loc, app); err != nil {
			return nil, err
		}
	}
	if created {
		log.Info("creating location", "family", p.IndexFamily())
	} else {
		log.Info("opening location", "family", p.IndexFamily())
	}

	c, err := open(loc, p, created, opts.Metrics, log)
	if err != nil {
		if created && !loc.IsMem() {
			// a half-made location would later read as data without params
			err = errors.Join(err, os.RemoveAll(loc.DataDir()))
		}
		return nil, err
	}
	return c, nil
}

// writeParams records the params of a new location
var writeParams = params.WriteFile

func open(loc Location, p *params.StoreParams, created bool, m *metrics.Metrics, log logging.Logger) (*Components, error) {
	st, err := openStorage(loc, p, log)
	if err != nil {
		return nil, err
	}
	c, err := assemble(st, p, m, log)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}
	c.Location = loc
	c.Created = created

	if created && !loc.IsMem() {
		// recorded last so a failed first build leaves no params behind
		if err := writeParams(loc.ParamsFile(), p); err != nil {
			return nil, errors.Join(fmt.Errorf("%w: write params: %w", store.ErrConfig, err), c.Close())
		}
	}
	return c, nil
}

func resolveOnDisk(loc Location, app *params.StoreParams) (*params.StoreParams, bool, error) {
	st, err := loc.inspect()
	if err != nil {
		return nil, false, err
	}
	switch {
	case st.hasParams:
		onDisk, err := params.ReadFile(loc.ParamsFile())
		if err != nil {
			return nil, false, err
		}
		p, err := params.Resolve(app, onDisk)
		return p, false, err
	case st.hasData:
		return nil, false, fmt.Errorf("%w: location %s has data but no %s", store.ErrConfig, loc, params.FileName)
	default:
		p, err := params.Resolve(app, nil)
		if err != nil {
			return nil, false, err
		}
		if err := os.MkdirAll(loc.DataDir(), 0o750); err != nil {
			return nil, false, fmt.Errorf("%w: location %s: %w", store.ErrConfig, loc, err)
		}
		return p, true, nil
	}
}

func openStorage(loc Location, p *params.StoreParams, log logging.Logger) (store.Storage, error) {
	syncWrites := p.FileMode() == params.FileModeSync
	switch p.IndexFamily() {
	case params.FamilyBadger:
		return storage.NewBadgerStorage(storage.BadgerConfig{
			Dir:            loc.DataDir(),
			InMemory:       loc.IsMem(),
			BlockSize:      p.BlockSize(),
			BlockCacheSize: p.BlockCacheSize(),
			SyncWrites:     syncWrites,
			Logger:         log,
		})
	case params.FamilyPebble:
		return storage.NewPebbleStorage(storage.PebbleConfig{
			Dir:            loc.DataDir(),
			InMemory:       loc.IsMem(),
			BlockSize:      p.BlockSize(),
			BlockCacheSize: p.BlockCacheSize(),
			SyncWrites:     syncWrites,
			Logger:         log,
		})
	}
	return nil, fmt.Errorf("%w: unknown index family %q", store.ErrConfig, p.IndexFamily())
}

func assemble(st store.Storage, p *params.StoreParams, m *metrics.Metrics, log logging.Logger) (*Components, error) {
	node2id, err := st.RangeIndex(p.IndexNode2Id(), nodetable.Node2IDFactory)
	if err != nil {
		return nil, err
	}
	objects, err := st.ObjectFile(p.IndexId2Node())
	if err != nil {
		return nil, err
	}
	nodes, err := nodetable.New(nodetable.Config{
		Node2ID:              node2id,
		Nodes:                objects,
		Node2NodeIDCacheSize: p.Node2NodeIDCacheSize(),
		NodeID2NodeCacheSize: p.NodeID2NodeCacheSize(),
		NodeMissCacheSize:    p.NodeMissCacheSize(),
		Metrics:              m,
		Logger:               log,
	})
	if err != nil {
		return nil, err
	}

	triples, err := buildTable(st, TriplesTable, params.TripleOrder, p.TripleIndexes(), m, log)
	if err != nil {
		return nil, err
	}
	quads, err := buildTable(st, QuadsTable, params.QuadOrder, p.QuadIndexes(), m, log)
	if err != nil {
		return nil, err
	}
	prefixes, err := buildTable(st, PrefixesTable, params.PrefixOrder, p.PrefixIndexes(), m, log)
	if err != nil {
		return nil, err
	}

	return &Components{
		Params:   p,
		Storage:  st,
		Nodes:    nodes,
		Triples:  triples,
		Quads:    quads,
		Prefixes: prefixes,
	}, nil
}

// buildTable makes one tuple index per order; the first is the primary.
func buildTable(st store.Storage, name, natural string, orders []string, m *metrics.Metrics, log logging.Logger) (*tupletable.TupleTable, error) {
	indexes := make([]*tupleindex.TupleIndex, 0, len(orders))
	for _, order := range orders {
		cmap, err := colmap.New(natural, order)
		if err != nil {
			return nil, err
		}
		ri, err := st.RangeIndex(order, tupleindex.Factory(cmap.Len()))
		if err != nil {
			return nil, err
		}
		idx, err := tupleindex.New(order, cmap, ri)
		if err != nil {
			return nil, err
		}
		log.Debug("tuple index ready", "table", name, "index", order, "map", cmap.Label())
		indexes = append(indexes, idx)
	}
	return tupletable.New(name, indexes, m, log)
}

// Sync flushes the tables, the node table and the engine
func (c *Components) Sync() error {
	return errors.Join(
		c.Triples.Sync(),
		c.Quads.Sync(),
		c.Prefixes.Sync(),
		c.Nodes.Sync(),
		c.Storage.Sync(),
	)
}

// Close releases everything; the engine is closed last.
func (c *Components) Close() error {
	return errors.Join(
		c.Triples.Close(),
		c.Quads.Close(),
		c.Prefixes.Close(),
		c.Nodes.Close(),
		c.Storage.Close(),
	)
}
