// Package metrics holds the prometheus collectors of one open store. Nothing
// is registered globally; the store hands its collectors to the caller.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tdb"

// Cache result labels
const (
	Hit  = "hit"
	Miss = "miss"
)

// Metrics is the set of counters shared by the components of one store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	TuplesAdded    *prometheus.CounterVec
	TuplesDeleted  *prometheus.CounterVec
	Finds          *prometheus.CounterVec
	NodeCache      *prometheus.CounterVec
	NodesAllocated prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		TuplesAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tuples_added_total",
			Help:      "Tuples newly added to a tuple table",
		}, []string{"table"}),
		TuplesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tuples_deleted_total",
			Help:      "Tuples removed from a tuple table",
		}, []string{"table"}),
		Finds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "finds_total",
			Help:      "Pattern finds, by the index chosen to answer them",
		}, []string{"table", "index"}),
		NodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "nodetable",
			Name:      "cache_total",
			Help:      "Node table cache lookups by cache and result",
		}, []string{"cache", "result"}),
		NodesAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nodes_allocated_total",
			Help:      "Terms written to the node table",
		}),
	}
}

// Collectors returns every collector for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{m.TuplesAdded, m.TuplesDeleted, m.Finds, m.NodeCache, m.NodesAllocated}
}

func (m *Metrics) Added(table string) {
	if m != nil {
		m.TuplesAdded.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) Deleted(table string) {
	if m != nil {
		m.TuplesDeleted.WithLabelValues(table).Inc()
	}
}

func (m *Metrics) Find(table, index string) {
	if m != nil {
		m.Finds.WithLabelValues(table, index).Inc()
	}
}

func (m *Metrics) Cache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := Miss
	if hit {
		result = Hit
	}
	m.NodeCache.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) Allocated() {
	if m != nil {
		m.NodesAllocated.Inc()
	}
}
