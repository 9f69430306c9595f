// Package nodetable maps RDF terms to NodeIDs and back.
//
// A node table is a stack: the inline tier answers small literals without
// storage, the cache tier holds recently used mappings, and the native table
// persists everything else in a range index and an object file.
package nodetable

import (
	"github.com/aleksaelezovic/trigo-tdb/internal/logging"
	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// NodeTable is a bidirectional term to NodeID mapping
type NodeTable interface {
	// Intern returns the id of term, allocating one if the term is new
	Intern(term rdf.Term) (nodeid.NodeID, error)

	// Lookup returns the id of term without allocating; unknown terms map to
	// nodeid.DoesNotExist
	Lookup(term rdf.Term) (nodeid.NodeID, error)

	// Resolve returns the term for id, or an error wrapping store.ErrNotFound
	Resolve(id nodeid.NodeID) (rdf.Term, error)

	Sync() error
	Close() error
}

// Config assembles a full node table stack
type Config struct {
	Node2ID store.RangeIndex
	Nodes   store.ObjectFile

	Node2NodeIDCacheSize int
	NodeID2NodeCacheSize int
	NodeMissCacheSize    int

	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// New builds the inline, cache and native tiers over cfg's storage.
func New(cfg Config) (NodeTable, error) {
	native, err := NewNative(cfg.Node2ID, cfg.Nodes, cfg.Metrics)
	if err != nil {
		return nil, err
	}
	cached, err := NewCache(native, cfg.Node2NodeIDCacheSize, cfg.NodeID2NodeCacheSize, cfg.NodeMissCacheSize, cfg.Metrics)
	if err != nil {
		return nil, err
	}
	logging.OrNop(cfg.Logger).Debug("node table ready",
		"node2id_cache", cfg.Node2NodeIDCacheSize,
		"id2node_cache", cfg.NodeID2NodeCacheSize,
		"miss_cache", cfg.NodeMissCacheSize)
	return NewInline(cached), nil
}
