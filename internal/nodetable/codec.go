package nodetable

import (
	"encoding/binary"
	"fmt"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

// Encode serializes a term as its type byte followed by uvarint
// length-prefixed strings: the IRI, the blank node label, or the literal's
// lexical form, language and datatype IRI.
func Encode(term rdf.Term) ([]byte, error) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return appendString([]byte{byte(rdf.TermTypeNamedNode)}, t.IRI), nil
	case *rdf.BlankNode:
		return appendString([]byte{byte(rdf.TermTypeBlankNode)}, t.ID), nil
	case *rdf.Literal:
		b := make([]byte, 0, 4+len(t.Value)+len(t.Language)+len(t.DatatypeIRI()))
		b = append(b, byte(rdf.TermTypeLiteral))
		b = appendString(b, t.Value)
		b = appendString(b, t.Language)
		return appendString(b, t.DatatypeIRI()), nil
	case *rdf.DefaultGraph:
		return []byte{byte(rdf.TermTypeDefaultGraph)}, nil
	case nil:
		return nil, fmt.Errorf("%w: nil term", store.ErrUsage)
	default:
		return nil, fmt.Errorf("%w: unknown term type %T", store.ErrUsage, term)
	}
}

// Decode is the inverse of Encode
func Decode(b []byte) (rdf.Term, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("decode term: empty input")
	}
	kind, rest := rdf.TermType(b[0]), b[1:]

	switch kind {
	case rdf.TermTypeNamedNode:
		iri, _, err := readString(rest)
		if err != nil {
			return nil, err
		}
		return rdf.NewNamedNode(iri), nil

	case rdf.TermTypeBlankNode:
		id, _, err := readString(rest)
		if err != nil {
			return nil, err
		}
		return rdf.NewBlankNode(id), nil

	case rdf.TermTypeLiteral:
		value, rest, err := readString(rest)
		if err != nil {
			return nil, err
		}
		lang, rest, err := readString(rest)
		if err != nil {
			return nil, err
		}
		dt, _, err := readString(rest)
		if err != nil {
			return nil, err
		}
		lit := &rdf.Literal{Value: value, Language: lang}
		if dt != "" {
			lit.Datatype = rdf.NewNamedNode(dt)
		}
		return lit, nil

	case rdf.TermTypeDefaultGraph:
		return rdf.NewDefaultGraph(), nil
	}
	return nil, fmt.Errorf("decode term: unknown type byte %#x", b[0])
}

func appendString(b []byte, s string) []byte {
	b = binary.AppendUvarint(b, uint64(len(s)))
	return append(b, s...)
}

func readString(b []byte) (string, []byte, error) {
	n, w := binary.Uvarint(b)
	if w <= 0 || uint64(len(b)-w) < n {
		return "", nil, fmt.Errorf("decode term: truncated string")
	}
	end := w + int(n) // #nosec G115 - bounded by len(b) above
	return string(b[w:end]), b[end:], nil
}
