package tuple

// Iterator iterates over tuples
type Iterator interface {
	// Next advances to the next tuple
	Next() bool

	// Tuple returns the current tuple
	Tuple() Tuple

	// Err returns the first error encountered during iteration
	Err() error

	// Close releases the iterator; it is safe to call more than once
	Close() error
}

// Collect drains it into a slice and closes it.
func Collect(it Iterator) ([]Tuple, error) {
	defer it.Close()
	var out []Tuple
	for it.Next() {
		out = append(out, it.Tuple())
	}
	return out, it.Err()
}

// Count drains it and returns the number of tuples.
func Count(it Iterator) (int64, error) {
	defer it.Close()
	var n int64
	for it.Next() {
		n++
	}
	return n, it.Err()
}

type sliceIterator struct {
	tuples []Tuple
	pos    int
}

// FromSlice iterates over a fixed list of tuples.
func FromSlice(tuples ...Tuple) Iterator {
	return &sliceIterator{tuples: tuples, pos: -1}
}

// Empty returns an iterator with no tuples.
func Empty() Iterator {
	return FromSlice()
}

func (s *sliceIterator) Next() bool {
	if s.pos+1 >= len(s.tuples) {
		s.pos = len(s.tuples)
		return false
	}
	s.pos++
	return true
}

func (s *sliceIterator) Tuple() Tuple {
	return s.tuples[s.pos]
}

func (s *sliceIterator) Err() error   { return nil }
func (s *sliceIterator) Close() error { return nil }

type filterIterator struct {
	Iterator
	keep func(Tuple) bool
}

// Filter passes through only the tuples for which keep returns true.
func Filter(it Iterator, keep func(Tuple) bool) Iterator {
	return &filterIterator{Iterator: it, keep: keep}
}

func (f *filterIterator) Next() bool {
	for f.Iterator.Next() {
		if f.keep(f.Iterator.Tuple()) {
			return true
		}
	}
	return false
}
