// Package nquads reads and writes line-oriented N-Quads, which extends
// N-Triples with an optional fourth (graph) position:
//
//	<subject> <predicate> <object> [<graph>] .
//
// The reader also accepts PREFIX and BASE directives, one per line, and
// reports them to the caller.
package nquads

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
)

const maxLine = 1 << 20

// SyntaxError locates a malformed statement
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("nquads: line %d col %d: %s", e.Line, e.Col, e.Msg)
}

// Reader streams quads from N-Quads or N-Triples input. Triples are
// returned in the default graph.
type Reader struct {
	sc       *bufio.Scanner
	lineNo   int
	prefixes map[string]string
	base     *url.URL

	// OnPrefix, if set, is called for every PREFIX directive in input order
	OnPrefix func(prefix, iri string)
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc, prefixes: make(map[string]string)}
}

// Prefixes returns the prefixes declared so far.
func (r *Reader) Prefixes() map[string]string {
	out := make(map[string]string, len(r.prefixes))
	for k, v := range r.prefixes {
		out[k] = v
	}
	return out
}

// Next returns the next quad, or io.EOF when the input is exhausted.
func (r *Reader) Next() (*rdf.Quad, error) {
	for r.sc.Scan() {
		r.lineNo++
		p := &lineParser{r: r, in: r.sc.Text(), line: r.lineNo}
		p.skipSpace()
		if p.done() {
			continue
		}

		switch {
		case p.keyword("@prefix"), p.keyword("PREFIX"):
			if err := p.prefix(); err != nil {
				return nil, err
			}
			continue
		case p.keyword("@base"), p.keyword("BASE"):
			if err := p.baseDirective(); err != nil {
				return nil, err
			}
			continue
		}

		return p.quad()
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("nquads: line %d: %w", r.lineNo+1, err)
	}
	return nil, io.EOF
}

// ReadAll collects every quad of in.
func ReadAll(in io.Reader) ([]*rdf.Quad, error) {
	r := NewReader(in)
	var quads []*rdf.Quad
	for {
		q, err := r.Next()
		if err == io.EOF {
			return quads, nil
		}
		if err != nil {
			return nil, err
		}
		quads = append(quads, q)
	}
}

// Parse is ReadAll over a string.
func Parse(input string) ([]*rdf.Quad, error) {
	return ReadAll(strings.NewReader(input))
}

type lineParser struct {
	r    *Reader
	in   string
	pos  int
	line int
}

func (p *lineParser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.line, Col: p.pos + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *lineParser) done() bool {
	return p.pos >= len(p.in)
}

func (p *lineParser) peek() byte {
	return p.in[p.pos]
}

// skipSpace skips whitespace and a trailing comment
func (p *lineParser) skipSpace() {
	for !p.done() {
		switch p.peek() {
		case ' ', '\t', '\r':
			p.pos++
		case '#':
			p.pos = len(p.in)
		default:
			return
		}
	}
}

// keyword consumes kw, case-insensitively, when it is followed by whitespace
func (p *lineParser) keyword(kw string) bool {
	end := p.pos + len(kw)
	if end > len(p.in) || !strings.EqualFold(p.in[p.pos:end], kw) {
		return false
	}
	if end < len(p.in) && p.in[end] != ' ' && p.in[end] != '\t' {
		return false
	}
	p.pos = end
	return true
}

func (p *lineParser) endDirective() error {
	p.skipSpace()
	if !p.done() && p.peek() == '.' {
		p.pos++
		p.skipSpace()
	}
	if !p.done() {
		return p.errorf("unexpected %q after directive", p.peek())
	}
	return nil
}

func (p *lineParser) prefix() error {
	p.skipSpace()
	start := p.pos
	for !p.done() && p.peek() != ':' {
		if c := p.peek(); c == ' ' || c == '\t' {
			return p.errorf("expected ':' after prefix name")
		}
		p.pos++
	}
	if p.done() {
		return p.errorf("expected ':' after prefix name")
	}
	name := p.in[start:p.pos]
	p.pos++

	p.skipSpace()
	iri, err := p.iri()
	if err != nil {
		return err
	}
	if err := p.endDirective(); err != nil {
		return err
	}

	p.r.prefixes[name] = iri
	if p.r.OnPrefix != nil {
		p.r.OnPrefix(name, iri)
	}
	return nil
}

func (p *lineParser) baseDirective() error {
	p.skipSpace()
	iri, err := p.iri()
	if err != nil {
		return err
	}
	u, err := url.Parse(iri)
	if err != nil {
		return p.errorf("invalid base IRI %q: %v", iri, err)
	}
	p.r.base = u
	return p.endDirective()
}

func (p *lineParser) quad() (*rdf.Quad, error) {
	subject, err := p.term("subject")
	if err != nil {
		return nil, err
	}
	if _, ok := subject.(*rdf.Literal); ok {
		return nil, p.errorf("literal subject")
	}
	p.skipSpace()

	predicate, err := p.term("predicate")
	if err != nil {
		return nil, err
	}
	if _, ok := predicate.(*rdf.NamedNode); !ok {
		return nil, p.errorf("predicate must be an IRI")
	}
	p.skipSpace()

	object, err := p.term("object")
	if err != nil {
		return nil, err
	}
	p.skipSpace()

	var graph rdf.Term = rdf.NewDefaultGraph()
	if !p.done() && p.peek() != '.' {
		graph, err = p.term("graph")
		if err != nil {
			return nil, err
		}
		if _, ok := graph.(*rdf.Literal); ok {
			return nil, p.errorf("literal graph name")
		}
		p.skipSpace()
	}

	if p.done() || p.peek() != '.' {
		return nil, p.errorf("expected '.' at end of statement")
	}
	p.pos++
	p.skipSpace()
	if !p.done() {
		return nil, p.errorf("unexpected %q after '.'", p.peek())
	}
	return rdf.NewQuad(subject, predicate, object, graph), nil
}

func (p *lineParser) term(position string) (rdf.Term, error) {
	if p.done() {
		return nil, p.errorf("missing %s", position)
	}
	switch c := p.peek(); {
	case c == '<':
		iri, err := p.iri()
		if err != nil {
			return nil, err
		}
		return rdf.NewNamedNode(iri), nil
	case c == '_':
		return p.blankNode()
	case c == '"':
		return p.literal()
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.number()
	case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == ':':
		return p.prefixedName()
	default:
		return nil, p.errorf("unexpected %q in %s", c, position)
	}
}

func (p *lineParser) iri() (string, error) {
	if p.done() || p.peek() != '<' {
		return "", p.errorf("expected '<'")
	}
	p.pos++
	start := p.pos
	for !p.done() && p.peek() != '>' {
		if c := p.peek(); c == ' ' || c == '<' || c == '"' {
			return "", p.errorf("invalid character %q in IRI", c)
		}
		p.pos++
	}
	if p.done() {
		return "", p.errorf("unclosed IRI")
	}
	iri := p.in[start:p.pos]
	p.pos++
	return p.resolve(iri)
}

// resolve applies the BASE directive to relative IRIs
func (p *lineParser) resolve(iri string) (string, error) {
	if p.r.base == nil {
		return iri, nil
	}
	u, err := url.Parse(iri)
	if err != nil {
		return "", p.errorf("invalid IRI %q: %v", iri, err)
	}
	if u.IsAbs() {
		return iri, nil
	}
	return p.r.base.ResolveReference(u).String(), nil
}

func isNameEnd(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '<' || c == '"' || c == '#'
}

// name scans to the next delimiter; a trailing '.' terminates the statement
// rather than belonging to the name.
func (p *lineParser) name() string {
	start := p.pos
	for !p.done() && !isNameEnd(p.peek()) {
		p.pos++
	}
	for p.pos > start && p.in[p.pos-1] == '.' {
		p.pos--
	}
	return p.in[start:p.pos]
}

func (p *lineParser) blankNode() (rdf.Term, error) {
	if !strings.HasPrefix(p.in[p.pos:], "_:") {
		return nil, p.errorf("expected '_:'")
	}
	p.pos += 2
	label := p.name()
	if label == "" {
		return nil, p.errorf("empty blank node label")
	}
	return rdf.NewBlankNode(label), nil
}

func (p *lineParser) literal() (rdf.Term, error) {
	p.pos++
	var value strings.Builder
	for {
		if p.done() {
			return nil, p.errorf("unclosed string literal")
		}
		c := p.peek()
		if c == '"' {
			p.pos++
			break
		}
		if c != '\\' {
			value.WriteByte(c)
			p.pos++
			continue
		}
		p.pos++
		if p.done() {
			return nil, p.errorf("unterminated escape sequence")
		}
		esc := p.peek()
		p.pos++
		switch esc {
		case 'n':
			value.WriteByte('\n')
		case 't':
			value.WriteByte('\t')
		case 'r':
			value.WriteByte('\r')
		case 'b':
			value.WriteByte('\b')
		case 'f':
			value.WriteByte('\f')
		case '"', '\'', '\\':
			value.WriteByte(esc)
		case 'u', 'U':
			n := 4
			if esc == 'U' {
				n = 8
			}
			if p.pos+n > len(p.in) {
				return nil, p.errorf("short unicode escape")
			}
			cp, err := strconv.ParseUint(p.in[p.pos:p.pos+n], 16, 32)
			if err != nil {
				return nil, p.errorf("invalid unicode escape %q", p.in[p.pos:p.pos+n])
			}
			value.WriteRune(rune(cp))
			p.pos += n
		default:
			return nil, p.errorf("invalid escape '\\%c'", esc)
		}
	}

	if !p.done() && p.peek() == '@' {
		p.pos++
		lang := p.name()
		if lang == "" {
			return nil, p.errorf("empty language tag")
		}
		return rdf.NewLiteralWithLanguage(value.String(), lang), nil
	}
	if strings.HasPrefix(p.in[p.pos:], "^^") {
		p.pos += 2
		dt, err := p.term("datatype")
		if err != nil {
			return nil, err
		}
		nn, ok := dt.(*rdf.NamedNode)
		if !ok {
			return nil, p.errorf("datatype must be an IRI")
		}
		return rdf.NewLiteralWithDatatype(value.String(), nn), nil
	}
	return rdf.NewLiteral(value.String()), nil
}

// number reads a bare Turtle-style numeric literal
func (p *lineParser) number() (rdf.Term, error) {
	lex := p.name()
	if _, err := strconv.ParseInt(lex, 10, 64); err == nil {
		return rdf.NewLiteralWithDatatype(lex, rdf.XSDInteger), nil
	}
	if strings.ContainsAny(lex, "eE") {
		if _, err := strconv.ParseFloat(lex, 64); err == nil {
			return rdf.NewLiteralWithDatatype(lex, rdf.XSDDouble), nil
		}
	} else if _, err := strconv.ParseFloat(lex, 64); err == nil {
		if strings.Contains(lex, ".") {
			return rdf.NewLiteralWithDatatype(lex, rdf.XSDDecimal), nil
		}
		return rdf.NewLiteralWithDatatype(lex, rdf.XSDInteger), nil
	}
	return nil, p.errorf("invalid number %q", lex)
}

func (p *lineParser) prefixedName() (rdf.Term, error) {
	pname := p.name()
	prefix, local, ok := strings.Cut(pname, ":")
	if !ok {
		return nil, p.errorf("expected ':' in prefixed name %q", pname)
	}
	ns, ok := p.r.prefixes[prefix]
	if !ok {
		return nil, p.errorf("undefined prefix %q", prefix)
	}
	return rdf.NewNamedNode(ns + local), nil
}

// ParseTerm parses a single term in N-Quads syntax. Prefixed names are
// expanded with prefixes, which may be nil.
func ParseTerm(s string, prefixes map[string]string) (rdf.Term, error) {
	r := NewReader(strings.NewReader(""))
	for k, v := range prefixes {
		r.prefixes[k] = v
	}
	p := &lineParser{r: r, in: strings.TrimSpace(s), line: 1}
	t, err := p.term("term")
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q after term", p.peek())
	}
	return t, nil
}
