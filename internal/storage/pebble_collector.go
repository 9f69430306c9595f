package storage

import (
	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleCollector exports engine metrics of one pebble-backed location
type PebbleCollector struct {
	db *pebble.DB

	compactionCount *prometheus.Desc
	compactionDebt  *prometheus.Desc
	memtableSize    *prometheus.Desc
	memtableCount   *prometheus.Desc
	walFiles        *prometheus.Desc
	walSize         *prometheus.Desc
	blockCacheHits  *prometheus.Desc
	blockCacheMiss  *prometheus.Desc
}

func newPebbleCollector(db *pebble.DB) *PebbleCollector {
	return &PebbleCollector{
		db: db,
		compactionCount: prometheus.NewDesc(
			"tdb_pebble_compaction_count_total",
			"Total number of compactions performed",
			nil, nil,
		),
		compactionDebt: prometheus.NewDesc(
			"tdb_pebble_compaction_estimated_debt_bytes",
			"Estimated number of bytes that need compacting",
			nil, nil,
		),
		memtableSize: prometheus.NewDesc(
			"tdb_pebble_memtable_size_bytes",
			"Current size of the memtables",
			nil, nil,
		),
		memtableCount: prometheus.NewDesc(
			"tdb_pebble_memtable_count",
			"Current number of memtables",
			nil, nil,
		),
		walFiles: prometheus.NewDesc(
			"tdb_pebble_wal_files",
			"Number of live WAL files",
			nil, nil,
		),
		walSize: prometheus.NewDesc(
			"tdb_pebble_wal_size_bytes",
			"Size of the live WAL data",
			nil, nil,
		),
		blockCacheHits: prometheus.NewDesc(
			"tdb_pebble_block_cache_hits_total",
			"Block cache hits",
			nil, nil,
		),
		blockCacheMiss: prometheus.NewDesc(
			"tdb_pebble_block_cache_misses_total",
			"Block cache misses",
			nil, nil,
		),
	}
}

// Collector returns the engine metrics collector of this storage
func (s *PebbleStorage) Collector() prometheus.Collector {
	return newPebbleCollector(s.db)
}

func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.compactionCount
	ch <- pc.compactionDebt
	ch <- pc.memtableSize
	ch <- pc.memtableCount
	ch <- pc.walFiles
	ch <- pc.walSize
	ch <- pc.blockCacheHits
	ch <- pc.blockCacheMiss
}

func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	m := pc.db.Metrics()

	ch <- prometheus.MustNewConstMetric(pc.compactionCount, prometheus.CounterValue, float64(m.Compact.Count))
	ch <- prometheus.MustNewConstMetric(pc.compactionDebt, prometheus.GaugeValue, float64(m.Compact.EstimatedDebt))
	ch <- prometheus.MustNewConstMetric(pc.memtableSize, prometheus.GaugeValue, float64(m.MemTable.Size))
	ch <- prometheus.MustNewConstMetric(pc.memtableCount, prometheus.GaugeValue, float64(m.MemTable.Count))
	ch <- prometheus.MustNewConstMetric(pc.walFiles, prometheus.GaugeValue, float64(m.WAL.Files))
	ch <- prometheus.MustNewConstMetric(pc.walSize, prometheus.GaugeValue, float64(m.WAL.Size))
	ch <- prometheus.MustNewConstMetric(pc.blockCacheHits, prometheus.CounterValue, float64(m.BlockCache.Hits))
	ch <- prometheus.MustNewConstMetric(pc.blockCacheMiss, prometheus.CounterValue, float64(m.BlockCache.Misses))
}
