package nodetable

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
	"github.com/zeebo/xxh3"
)

// HashSize is the key length of the node2id index
const HashSize = 16

// Node2IDFactory is the record shape of the node2id index: term hash to id
var Node2IDFactory = store.NewRecordFactory(HashSize, nodeid.Size)

// Native is the persistent node table. Encoded terms live in an object file;
// the node2id index maps the 128-bit xxh3 hash of the encoding to the
// pointer id of that object.
type Native struct {
	node2id store.RangeIndex
	nodes   store.ObjectFile
	metrics *metrics.Metrics

	// serializes allocation
	mu sync.Mutex
}

func NewNative(node2id store.RangeIndex, nodes store.ObjectFile, m *metrics.Metrics) (*Native, error) {
	if node2id == nil || nodes == nil {
		return nil, fmt.Errorf("%w: node table needs a node2id index and an object file", store.ErrConfig)
	}
	if f := node2id.Factory(); f != Node2IDFactory {
		return nil, fmt.Errorf("%w: node2id index has %s, want %s", store.ErrConfig, f, Node2IDFactory)
	}
	return &Native{node2id: node2id, nodes: nodes, metrics: m}, nil
}

func hashKey(encoded []byte) []byte {
	h := xxh3.Hash128(encoded)
	key := make([]byte, HashSize)
	binary.BigEndian.PutUint64(key[0:8], h.Hi)
	binary.BigEndian.PutUint64(key[8:16], h.Lo)
	return key
}

// find looks the encoded term up by its hash. A hit is confirmed against the
// stored object, so two terms sharing a hash never share an id.
func (n *Native) find(key, encoded []byte) (nodeid.NodeID, bool, error) {
	rec, found, err := n.node2id.Find(key)
	if err != nil || !found {
		return nodeid.DoesNotExist, false, err
	}
	id := nodeid.FromBytes(rec.Value)
	stored, err := n.nodes.Read(id.Value())
	if err != nil {
		return nodeid.DoesNotExist, false, err
	}
	if !bytes.Equal(stored, encoded) {
		return nodeid.DoesNotExist, false, fmt.Errorf("%w: node2id hash %x maps to node %s holding another term",
			store.ErrInconsistent, key, id)
	}
	return id, true, nil
}

func (n *Native) Intern(term rdf.Term) (nodeid.NodeID, error) {
	encoded, err := Encode(term)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	key := hashKey(encoded)

	if id, found, err := n.find(key, encoded); err != nil || found {
		return id, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// another writer may have allocated it while we waited
	if id, found, err := n.find(key, encoded); err != nil || found {
		return id, err
	}

	ptr, err := n.nodes.Write(encoded)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	id, err := nodeid.FromPtr(ptr)
	if err != nil {
		return nodeid.DoesNotExist, fmt.Errorf("%w: %w", store.ErrStorage, err)
	}
	if _, err := n.node2id.Insert(store.Record{Key: key, Value: id.Bytes()}); err != nil {
		return nodeid.DoesNotExist, err
	}
	n.metrics.Allocated()
	return id, nil
}

func (n *Native) Lookup(term rdf.Term) (nodeid.NodeID, error) {
	encoded, err := Encode(term)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	id, _, err := n.find(hashKey(encoded), encoded)
	return id, err
}

func (n *Native) Resolve(id nodeid.NodeID) (rdf.Term, error) {
	if !id.IsPtr() {
		return nil, fmt.Errorf("%w: node %s is not stored in the node table", store.ErrNotFound, id)
	}
	data, err := n.nodes.Read(id.Value())
	if err != nil {
		return nil, err
	}
	term, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: node %s: %w", store.ErrStorage, id, err)
	}
	return term, nil
}

func (n *Native) Sync() error {
	if err := n.node2id.Sync(); err != nil {
		return err
	}
	return n.nodes.Sync()
}

func (n *Native) Close() error {
	err1 := n.node2id.Close()
	err2 := n.nodes.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
