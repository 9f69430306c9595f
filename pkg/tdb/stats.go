package tdb

import (
	"github.com/aleksaelezovic/trigo-tdb/internal/tupletable"
)

// IndexStats describes one tuple index
type IndexStats struct {
	Name    string
	Mapping string
	Primary bool
	Size    int64
}

// TableStats describes one tuple table
type TableStats struct {
	Name    string
	Arity   int
	Indexes []IndexStats
}

// Stats sizes every index of every table. Secondary sizes are counted, not
// assumed, so a divergence shows up here.
func (s *Store) Stats() ([]TableStats, error) {
	var out []TableStats
	err := s.read(func() error {
		for _, t := range []*tupletable.TupleTable{s.c.Triples, s.c.Quads, s.c.Prefixes} {
			ts := TableStats{Name: t.Name(), Arity: t.Arity()}
			for i, idx := range t.Indexes() {
				n, err := idx.Size()
				if err != nil {
					return err
				}
				ts.Indexes = append(ts.Indexes, IndexStats{
					Name:    idx.Name(),
					Mapping: idx.ColumnMap().Label(),
					Primary: i == 0,
					Size:    n,
				})
			}
			out = append(out, ts)
		}
		return nil
	})
	return out, err
}
