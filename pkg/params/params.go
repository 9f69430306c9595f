// Package params defines the parameters a store location is built with.
//
// Layout fields shape the files of a location and are fixed when it is
// created. Dynamic fields (cache sizes, file mode) may change on every open.
// Each field records whether it was set explicitly, so Resolve can tell a
// caller's choice from a default.
package params

import (
	"fmt"
	"slices"

	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// IndexFamily selects the storage engine behind range indexes and object files
type IndexFamily string

const (
	FamilyBadger IndexFamily = "badger"
	FamilyPebble IndexFamily = "pebble"
)

// FileMode selects how writes reach disk
type FileMode string

const (
	// FileModeDirect leaves flushing to the engine and explicit Sync calls
	FileModeDirect FileMode = "direct"
	// FileModeSync flushes every write
	FileModeSync FileMode = "sync"
)

// Natural column orders of the three tuple tables
const (
	TripleOrder = "SPO"
	QuadOrder   = "GSPO"
	PrefixOrder = "GPU"
)

type Field int

const (
	FieldIndexFamily Field = iota
	FieldBlockSize
	FieldTripleIndexes
	FieldQuadIndexes
	FieldPrefixIndexes
	FieldIndexNode2Id
	FieldIndexId2Node
	FieldFileMode
	FieldNode2NodeIDCacheSize
	FieldNodeID2NodeCacheSize
	FieldNodeMissCacheSize
	FieldBlockCacheSize
	numFields
)

var fieldNames = [numFields]string{
	"index_family",
	"block_size",
	"triple_indexes",
	"quad_indexes",
	"prefix_indexes",
	"index_node2id",
	"index_id2node",
	"file_mode",
	"node2nodeid_cache_size",
	"nodeid2node_cache_size",
	"node_miss_cache_size",
	"block_cache_size",
}

// Fields lists every field in declaration order
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Layout reports whether the field is fixed once a location exists
func (f Field) Layout() bool {
	return f <= FieldIndexId2Node
}

type values struct {
	indexFamily          IndexFamily
	blockSize            int
	tripleIndexes        []string
	quadIndexes          []string
	prefixIndexes        []string
	indexNode2Id         string
	indexId2Node         string
	fileMode             FileMode
	node2NodeIDCacheSize int
	nodeID2NodeCacheSize int
	nodeMissCacheSize    int
	blockCacheSize       int64
}

// StoreParams is an immutable parameter set; build one with a Builder.
type StoreParams struct {
	v   values
	set [numFields]bool
}

var defaults = values{
	indexFamily:          FamilyBadger,
	blockSize:            4 << 10,
	tripleIndexes:        []string{"SPO", "POS", "OSP"},
	quadIndexes:          []string{"GSPO", "GPOS", "GOSP", "SPOG", "POSG", "OSPG"},
	prefixIndexes:        []string{"GPU"},
	indexNode2Id:         "node2id",
	indexId2Node:         "nodes",
	fileMode:             FileModeDirect,
	node2NodeIDCacheSize: 100_000,
	nodeID2NodeCacheSize: 500_000,
	nodeMissCacheSize:    100,
	blockCacheSize:       64 << 20,
}

// Default returns the global defaults, with no field marked as set
func Default() *StoreParams {
	p := &StoreParams{}
	for _, f := range Fields() {
		p.v.copyField(&defaults, f)
	}
	return p
}

func (p *StoreParams) IndexFamily() IndexFamily { return p.v.indexFamily }
func (p *StoreParams) BlockSize() int           { return p.v.blockSize }
func (p *StoreParams) TripleIndexes() []string  { return slices.Clone(p.v.tripleIndexes) }
func (p *StoreParams) QuadIndexes() []string    { return slices.Clone(p.v.quadIndexes) }
func (p *StoreParams) PrefixIndexes() []string  { return slices.Clone(p.v.prefixIndexes) }
func (p *StoreParams) IndexNode2Id() string     { return p.v.indexNode2Id }
func (p *StoreParams) IndexId2Node() string     { return p.v.indexId2Node }
func (p *StoreParams) FileMode() FileMode       { return p.v.fileMode }
func (p *StoreParams) Node2NodeIDCacheSize() int { return p.v.node2NodeIDCacheSize }
func (p *StoreParams) NodeID2NodeCacheSize() int { return p.v.nodeID2NodeCacheSize }
func (p *StoreParams) NodeMissCacheSize() int    { return p.v.nodeMissCacheSize }
func (p *StoreParams) BlockCacheSize() int64     { return p.v.blockCacheSize }

// IsSet reports whether f was given explicitly rather than defaulted
func (p *StoreParams) IsSet(f Field) bool {
	return p.set[f]
}

// Equal compares values only, not set flags
func (p *StoreParams) Equal(other *StoreParams) bool {
	for _, f := range Fields() {
		if !p.v.equalField(&other.v, f) {
			return false
		}
	}
	return true
}

func (v *values) copyField(src *values, f Field) {
	switch f {
	case FieldIndexFamily:
		v.indexFamily = src.indexFamily
	case FieldBlockSize:
		v.blockSize = src.blockSize
	case FieldTripleIndexes:
		v.tripleIndexes = slices.Clone(src.tripleIndexes)
	case FieldQuadIndexes:
		v.quadIndexes = slices.Clone(src.quadIndexes)
	case FieldPrefixIndexes:
		v.prefixIndexes = slices.Clone(src.prefixIndexes)
	case FieldIndexNode2Id:
		v.indexNode2Id = src.indexNode2Id
	case FieldIndexId2Node:
		v.indexId2Node = src.indexId2Node
	case FieldFileMode:
		v.fileMode = src.fileMode
	case FieldNode2NodeIDCacheSize:
		v.node2NodeIDCacheSize = src.node2NodeIDCacheSize
	case FieldNodeID2NodeCacheSize:
		v.nodeID2NodeCacheSize = src.nodeID2NodeCacheSize
	case FieldNodeMissCacheSize:
		v.nodeMissCacheSize = src.nodeMissCacheSize
	case FieldBlockCacheSize:
		v.blockCacheSize = src.blockCacheSize
	}
}

func (v *values) get(f Field) any {
	switch f {
	case FieldIndexFamily:
		return v.indexFamily
	case FieldBlockSize:
		return v.blockSize
	case FieldTripleIndexes:
		return v.tripleIndexes
	case FieldQuadIndexes:
		return v.quadIndexes
	case FieldPrefixIndexes:
		return v.prefixIndexes
	case FieldIndexNode2Id:
		return v.indexNode2Id
	case FieldIndexId2Node:
		return v.indexId2Node
	case FieldFileMode:
		return v.fileMode
	case FieldNode2NodeIDCacheSize:
		return v.node2NodeIDCacheSize
	case FieldNodeID2NodeCacheSize:
		return v.nodeID2NodeCacheSize
	case FieldNodeMissCacheSize:
		return v.nodeMissCacheSize
	case FieldBlockCacheSize:
		return v.blockCacheSize
	}
	return nil
}

func (v *values) equalField(other *values, f Field) bool {
	switch a := v.get(f).(type) {
	case []string:
		return slices.Equal(a, other.get(f).([]string))
	default:
		return a == other.get(f)
	}
}

// Resolve combines the caller's params with those recorded at a location;
// onDisk is nil for a new location. Explicit caller fields win, then fields
// recorded on disk, then defaults. A layout field the caller set to a value
// other than the location's fails with store.ErrConfig.
func Resolve(app, onDisk *StoreParams) (*StoreParams, error) {
	if app == nil {
		app = &StoreParams{}
	}
	out := Default()
	for _, f := range Fields() {
		switch {
		case onDisk != nil && f.Layout():
			if !onDisk.set[f] {
				return nil, fieldError(f, "missing from the params recorded at this location")
			}
			out.v.copyField(&onDisk.v, f)
			out.set[f] = true
			if app.set[f] && !app.v.equalField(&out.v, f) {
				return nil, fmt.Errorf("%w: %s is %v at this location, %v requested",
					store.ErrConfig, f, out.v.get(f), app.v.get(f))
			}
		case app.set[f]:
			out.v.copyField(&app.v, f)
			out.set[f] = true
		case onDisk != nil && onDisk.set[f]:
			out.v.copyField(&onDisk.v, f)
			out.set[f] = true
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks every field value
func (p *StoreParams) Validate() error {
	switch p.v.indexFamily {
	case FamilyBadger, FamilyPebble:
	default:
		return fieldError(FieldIndexFamily, "unknown index family %q", p.v.indexFamily)
	}
	switch p.v.fileMode {
	case FileModeDirect, FileModeSync:
	default:
		return fieldError(FieldFileMode, "unknown file mode %q", p.v.fileMode)
	}
	if p.v.blockSize <= 0 {
		return fieldError(FieldBlockSize, "must be positive, got %d", p.v.blockSize)
	}
	if p.v.blockCacheSize < 0 {
		return fieldError(FieldBlockCacheSize, "must not be negative, got %d", p.v.blockCacheSize)
	}
	if err := checkOrders(FieldTripleIndexes, TripleOrder, p.v.tripleIndexes); err != nil {
		return err
	}
	if err := checkOrders(FieldQuadIndexes, QuadOrder, p.v.quadIndexes); err != nil {
		return err
	}
	if err := checkOrders(FieldPrefixIndexes, PrefixOrder, p.v.prefixIndexes); err != nil {
		return err
	}

	names := map[string]Field{}
	for _, f := range []Field{FieldIndexNode2Id, FieldIndexId2Node} {
		name := p.v.get(f).(string)
		if name == "" {
			return fieldError(f, "must not be empty")
		}
		if other, dup := names[name]; dup {
			return fieldError(f, "name %q already used by %s", name, other)
		}
		names[name] = f
	}
	for _, f := range []Field{FieldTripleIndexes, FieldQuadIndexes, FieldPrefixIndexes} {
		for _, name := range p.v.get(f).([]string) {
			if other, dup := names[name]; dup {
				return fieldError(f, "name %q already used by %s", name, other)
			}
			names[name] = f
		}
	}
	return nil
}

// checkOrders verifies each order is a permutation of natural, none repeats,
// and there is at least one.
func checkOrders(f Field, natural string, orders []string) error {
	if len(orders) == 0 {
		return fieldError(f, "needs at least one index")
	}
	want := []byte(natural)
	slices.Sort(want)
	for _, order := range orders {
		got := []byte(order)
		slices.Sort(got)
		if !slices.Equal(got, want) {
			return fieldError(f, "%q is not an ordering of %s", order, natural)
		}
	}
	return nil
}

func fieldError(f Field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", store.ErrConfig, f, fmt.Sprintf(format, args...))
}
