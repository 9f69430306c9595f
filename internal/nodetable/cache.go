package nodetable

import (
	"sync"

	"github.com/aleksaelezovic/trigo-tdb/internal/metrics"
	"github.com/aleksaelezovic/trigo-tdb/internal/nodeid"
	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache label values for metrics
const (
	CacheNode2ID = "node2id"
	CacheID2Node = "id2node"
	CacheMiss    = "miss"
)

// Cache puts three LRU caches in front of another node table. Terms are keyed
// by their encoding. A cache with capacity <= 0 is disabled.
type Cache struct {
	base    NodeTable
	node2id *lru.Cache[string, nodeid.NodeID]
	id2node *lru.Cache[nodeid.NodeID, rdf.Term]
	miss    *lru.Cache[string, struct{}]
	metrics *metrics.Metrics

	// Intern holds it exclusively so a negative Lookup cannot record a
	// term as absent after it was allocated.
	missMu sync.RWMutex
}

func NewCache(base NodeTable, node2idSize, id2nodeSize, missSize int, m *metrics.Metrics) (*Cache, error) {
	c := &Cache{base: base, metrics: m}
	var err error
	if node2idSize > 0 {
		if c.node2id, err = lru.New[string, nodeid.NodeID](node2idSize); err != nil {
			return nil, err
		}
	}
	if id2nodeSize > 0 {
		if c.id2node, err = lru.New[nodeid.NodeID, rdf.Term](id2nodeSize); err != nil {
			return nil, err
		}
	}
	if missSize > 0 {
		if c.miss, err = lru.New[string, struct{}](missSize); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) cachedID(key string) (nodeid.NodeID, bool) {
	if c.node2id == nil {
		return nodeid.DoesNotExist, false
	}
	id, ok := c.node2id.Get(key)
	c.metrics.Cache(CacheNode2ID, ok)
	return id, ok
}

func (c *Cache) remember(key string, id nodeid.NodeID, term rdf.Term) {
	if c.node2id != nil {
		c.node2id.Add(key, id)
	}
	if c.id2node != nil {
		c.id2node.Add(id, term)
	}
}

func (c *Cache) Intern(term rdf.Term) (nodeid.NodeID, error) {
	encoded, err := Encode(term)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	key := string(encoded)
	if id, ok := c.cachedID(key); ok {
		return id, nil
	}

	c.missMu.Lock()
	defer c.missMu.Unlock()
	id, err := c.base.Intern(term)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	if c.miss != nil {
		c.miss.Remove(key)
	}
	c.remember(key, id, term)
	return id, nil
}

func (c *Cache) Lookup(term rdf.Term) (nodeid.NodeID, error) {
	encoded, err := Encode(term)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	key := string(encoded)
	if id, ok := c.cachedID(key); ok {
		return id, nil
	}

	c.missMu.RLock()
	defer c.missMu.RUnlock()
	if c.miss != nil {
		_, absent := c.miss.Get(key)
		c.metrics.Cache(CacheMiss, absent)
		if absent {
			return nodeid.DoesNotExist, nil
		}
	}
	id, err := c.base.Lookup(term)
	if err != nil {
		return nodeid.DoesNotExist, err
	}
	if id == nodeid.DoesNotExist {
		if c.miss != nil {
			c.miss.Add(key, struct{}{})
		}
		return id, nil
	}
	c.remember(key, id, term)
	return id, nil
}

func (c *Cache) Resolve(id nodeid.NodeID) (rdf.Term, error) {
	if c.id2node != nil {
		term, ok := c.id2node.Get(id)
		c.metrics.Cache(CacheID2Node, ok)
		if ok {
			return term, nil
		}
	}
	term, err := c.base.Resolve(id)
	if err != nil {
		return nil, err
	}
	if c.id2node != nil {
		c.id2node.Add(id, term)
	}
	return term, nil
}

func (c *Cache) Sync() error {
	return c.base.Sync()
}

func (c *Cache) Close() error {
	if c.node2id != nil {
		c.node2id.Purge()
	}
	if c.id2node != nil {
		c.id2node.Purge()
	}
	if c.miss != nil {
		c.miss.Purge()
	}
	return c.base.Close()
}
