package rdf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TermType represents the kind of an RDF term
type TermType byte

const (
	TermTypeNamedNode TermType = iota + 1
	TermTypeBlankNode
	TermTypeLiteral
	TermTypeDefaultGraph
)

func (t TermType) String() string {
	switch t {
	case TermTypeNamedNode:
		return "iri"
	case TermTypeBlankNode:
		return "bnode"
	case TermTypeLiteral:
		return "literal"
	case TermTypeDefaultGraph:
		return "default-graph"
	default:
		return "unknown"
	}
}

// Term represents an RDF term (IRI, blank node, literal or the default graph marker)
type Term interface {
	Type() TermType
	String() string
	Equals(other Term) bool
}

// NamedNode represents an IRI
type NamedNode struct {
	IRI string
}

func NewNamedNode(iri string) *NamedNode {
	return &NamedNode{IRI: iri}
}

func (n *NamedNode) Type() TermType {
	return TermTypeNamedNode
}

func (n *NamedNode) String() string {
	return "<" + n.IRI + ">"
}

func (n *NamedNode) Equals(other Term) bool {
	if on, ok := other.(*NamedNode); ok {
		return n.IRI == on.IRI
	}
	return false
}

// BlankNode represents a blank node
type BlankNode struct {
	ID string
}

func NewBlankNode(id string) *BlankNode {
	return &BlankNode{ID: id}
}

func (b *BlankNode) Type() TermType {
	return TermTypeBlankNode
}

func (b *BlankNode) String() string {
	return "_:" + b.ID
}

func (b *BlankNode) Equals(other Term) bool {
	if ob, ok := other.(*BlankNode); ok {
		return b.ID == ob.ID
	}
	return false
}

// Literal represents an RDF literal. A literal with neither Language nor
// Datatype is a simple literal (xsd:string).
type Literal struct {
	Value    string
	Language string     // for language-tagged strings
	Datatype *NamedNode // for typed literals
}

func NewLiteral(value string) *Literal {
	return &Literal{Value: value}
}

func NewLiteralWithLanguage(value, language string) *Literal {
	return &Literal{Value: value, Language: language}
}

func NewLiteralWithDatatype(value string, datatype *NamedNode) *Literal {
	return &Literal{Value: value, Datatype: datatype}
}

func (l *Literal) Type() TermType {
	return TermTypeLiteral
}

// DatatypeIRI returns the datatype IRI of the literal, or "" for simple and
// language-tagged literals. An explicit xsd:string is a simple literal.
func (l *Literal) DatatypeIRI() string {
	if l.Datatype == nil || l.Datatype.IRI == XSDString.IRI {
		return ""
	}
	return l.Datatype.IRI
}

func (l *Literal) String() string {
	var sb strings.Builder
	sb.WriteByte('"')
	sb.WriteString(EscapeString(l.Value))
	sb.WriteByte('"')
	if l.Language != "" {
		sb.WriteByte('@')
		sb.WriteString(l.Language)
	} else if l.Datatype != nil {
		sb.WriteString("^^")
		sb.WriteString(l.Datatype.String())
	}
	return sb.String()
}

func (l *Literal) Equals(other Term) bool {
	ol, ok := other.(*Literal)
	if !ok {
		return false
	}
	if l.Value != ol.Value || l.Language != ol.Language {
		return false
	}
	return l.DatatypeIRI() == ol.DatatypeIRI()
}

// DefaultGraph represents the default graph
type DefaultGraph struct{}

func NewDefaultGraph() *DefaultGraph {
	return &DefaultGraph{}
}

func (d *DefaultGraph) Type() TermType {
	return TermTypeDefaultGraph
}

func (d *DefaultGraph) String() string {
	return "DEFAULT"
}

func (d *DefaultGraph) Equals(other Term) bool {
	_, ok := other.(*DefaultGraph)
	return ok
}

// IsDefaultGraph reports whether t denotes the default graph. A nil term is
// not the default graph; callers use nil to mean "any graph".
func IsDefaultGraph(t Term) bool {
	return t != nil && t.Type() == TermTypeDefaultGraph
}

// Triple represents an RDF triple (subject, predicate, object)
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

func NewTriple(subject, predicate, object Term) *Triple {
	return &Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	}
}

func (t *Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Quad represents an RDF quad (subject, predicate, object, graph)
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}

func NewQuad(subject, predicate, object, graph Term) *Quad {
	return &Quad{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Graph:     graph,
	}
}

// Triple drops the graph component.
func (q *Quad) Triple() *Triple {
	return NewTriple(q.Subject, q.Predicate, q.Object)
}

func (q *Quad) Equals(o *Quad) bool {
	return q.Subject.Equals(o.Subject) && q.Predicate.Equals(o.Predicate) &&
		q.Object.Equals(o.Object) && q.Graph.Equals(o.Graph)
}

func (q *Quad) String() string {
	if IsDefaultGraph(q.Graph) || q.Graph == nil {
		return fmt.Sprintf("%s %s %s .", q.Subject, q.Predicate, q.Object)
	}
	return fmt.Sprintf("%s %s %s %s .", q.Subject, q.Predicate, q.Object, q.Graph)
}

const xsdNS = "http://www.w3.org/2001/XMLSchema#"

// Helper values for common XSD datatypes
var (
	XSDString   = NewNamedNode(xsdNS + "string")
	XSDInteger  = NewNamedNode(xsdNS + "integer")
	XSDDecimal  = NewNamedNode(xsdNS + "decimal")
	XSDDouble   = NewNamedNode(xsdNS + "double")
	XSDBoolean  = NewNamedNode(xsdNS + "boolean")
	XSDDateTime = NewNamedNode(xsdNS + "dateTime")
	XSDDate     = NewNamedNode(xsdNS + "date")
)

func NewIntegerLiteral(value int64) *Literal {
	return NewLiteralWithDatatype(strconv.FormatInt(value, 10), XSDInteger)
}

func NewDoubleLiteral(value float64) *Literal {
	return NewLiteralWithDatatype(strconv.FormatFloat(value, 'g', -1, 64), XSDDouble)
}

func NewBooleanLiteral(value bool) *Literal {
	return NewLiteralWithDatatype(strconv.FormatBool(value), XSDBoolean)
}

func NewDateTimeLiteral(value time.Time) *Literal {
	return NewLiteralWithDatatype(value.Format(time.RFC3339Nano), XSDDateTime)
}

func NewDateLiteral(value time.Time) *Literal {
	return NewLiteralWithDatatype(value.Format(time.DateOnly), XSDDate)
}

// EscapeString escapes a lexical form for N-Triples output.
func EscapeString(s string) string {
	if !strings.ContainsAny(s, "\"\\\n\r\t") {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
