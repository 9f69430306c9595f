package params

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"gopkg.in/yaml.v3"
)

// FileName is the params file kept at the root of every location
const FileName = "tdb.cfg"

// document is the YAML form; absent keys are unset fields
type document struct {
	IndexFamily          *IndexFamily `yaml:"index_family,omitempty"`
	BlockSize            *int         `yaml:"block_size,omitempty"`
	TripleIndexes        []string     `yaml:"triple_indexes,omitempty,flow"`
	QuadIndexes          []string     `yaml:"quad_indexes,omitempty,flow"`
	PrefixIndexes        []string     `yaml:"prefix_indexes,omitempty,flow"`
	IndexNode2Id         *string      `yaml:"index_node2id,omitempty"`
	IndexId2Node         *string      `yaml:"index_id2node,omitempty"`
	FileMode             *FileMode    `yaml:"file_mode,omitempty"`
	Node2NodeIDCacheSize *int         `yaml:"node2nodeid_cache_size,omitempty"`
	NodeID2NodeCacheSize *int         `yaml:"nodeid2node_cache_size,omitempty"`
	NodeMissCacheSize    *int         `yaml:"node_miss_cache_size,omitempty"`
	BlockCacheSize       *int64       `yaml:"block_cache_size,omitempty"`
}

func ptr[T any](v T) *T {
	return &v
}

// Marshal writes every field, set or not.
func Marshal(p *StoreParams) ([]byte, error) {
	doc := document{
		IndexFamily:          ptr(p.v.indexFamily),
		BlockSize:            ptr(p.v.blockSize),
		TripleIndexes:        p.v.tripleIndexes,
		QuadIndexes:          p.v.quadIndexes,
		PrefixIndexes:        p.v.prefixIndexes,
		IndexNode2Id:         ptr(p.v.indexNode2Id),
		IndexId2Node:         ptr(p.v.indexId2Node),
		FileMode:             ptr(p.v.fileMode),
		Node2NodeIDCacheSize: ptr(p.v.node2NodeIDCacheSize),
		NodeID2NodeCacheSize: ptr(p.v.nodeID2NodeCacheSize),
		NodeMissCacheSize:    ptr(p.v.nodeMissCacheSize),
		BlockCacheSize:       ptr(p.v.blockCacheSize),
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses YAML params; only the keys present are marked set.
func Unmarshal(data []byte) (*StoreParams, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parse params: %w", store.ErrConfig, err)
	}

	b := NewBuilder()
	if doc.IndexFamily != nil {
		b.IndexFamily(*doc.IndexFamily)
	}
	if doc.BlockSize != nil {
		b.BlockSize(*doc.BlockSize)
	}
	if doc.TripleIndexes != nil {
		b.TripleIndexes(doc.TripleIndexes...)
	}
	if doc.QuadIndexes != nil {
		b.QuadIndexes(doc.QuadIndexes...)
	}
	if doc.PrefixIndexes != nil {
		b.PrefixIndexes(doc.PrefixIndexes...)
	}
	if doc.IndexNode2Id != nil {
		b.IndexNode2Id(*doc.IndexNode2Id)
	}
	if doc.IndexId2Node != nil {
		b.IndexId2Node(*doc.IndexId2Node)
	}
	if doc.FileMode != nil {
		b.FileMode(*doc.FileMode)
	}
	if doc.Node2NodeIDCacheSize != nil {
		b.Node2NodeIDCacheSize(*doc.Node2NodeIDCacheSize)
	}
	if doc.NodeID2NodeCacheSize != nil {
		b.NodeID2NodeCacheSize(*doc.NodeID2NodeCacheSize)
	}
	if doc.NodeMissCacheSize != nil {
		b.NodeMissCacheSize(*doc.NodeMissCacheSize)
	}
	if doc.BlockCacheSize != nil {
		b.BlockCacheSize(*doc.BlockCacheSize)
	}
	return b.Build()
}

// ReadFile loads params from a YAML file
func ReadFile(path string) (*StoreParams, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is chosen by the caller
	if err != nil {
		return nil, fmt.Errorf("%w: read params: %w", store.ErrConfig, err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// WriteFile records p at path. The file is written beside path and renamed
// over it, so readers see either the old params or the new ones.
func WriteFile(path string, p *StoreParams) (err error) {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(f.Name())
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

func (p *StoreParams) String() string {
	data, err := Marshal(p)
	if err != nil {
		return fmt.Sprintf("params(%v)", err)
	}
	return string(data)
}
