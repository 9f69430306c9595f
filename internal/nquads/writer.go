package nquads

import (
	"bufio"
	"io"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
)

// Writer serializes quads one per line; default-graph quads are written as
// triples.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(q *rdf.Quad) error {
	_, err := w.w.WriteString(q.String() + "\n")
	return err
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
