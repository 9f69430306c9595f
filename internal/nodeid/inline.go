package nodeid

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aleksaelezovic/trigo-tdb/pkg/rdf"
)

const (
	intBits     = 56
	minInline   = -(int64(1) << (intBits - 1))
	maxInline   = int64(1)<<(intBits-1) - 1
	decimalBits = 48
	decimalMask = (uint64(1) << decimalBits) - 1
	minDecimal  = -(int64(1) << (decimalBits - 1))
	maxDecimal  = int64(1)<<(decimalBits-1) - 1
	maxScale    = 0xFF

	dateTimeLayout = "2006-01-02T15:04:05.999Z07:00"
)

// Inline encodes a literal directly into a NodeID when its datatype is one of
// the inlinable XSD types and its lexical form decodes back unchanged.
// Anything else reports false and must go through the term table.
func Inline(term rdf.Term) (NodeID, bool) {
	lit, ok := term.(*rdf.Literal)
	if !ok || lit.Language != "" || lit.Datatype == nil {
		return 0, false
	}

	switch lit.Datatype.IRI {
	case rdf.XSDInteger.IRI:
		return inlineInteger(lit.Value)
	case rdf.XSDDecimal.IRI:
		return inlineDecimal(lit.Value)
	case rdf.XSDBoolean.IRI:
		return inlineBoolean(lit.Value)
	case rdf.XSDDate.IRI:
		return inlineDate(lit.Value)
	case rdf.XSDDateTime.IRI:
		return inlineDateTime(lit.Value)
	}
	return 0, false
}

// Extract decodes an inline NodeID back to its literal.
func Extract(id NodeID) (rdf.Term, error) {
	switch id.Kind() {
	case KindInteger:
		return rdf.NewIntegerLiteral(signExtend(id.Value(), intBits)), nil
	case KindDecimal:
		scale := int(id.Value() >> decimalBits)
		unscaled := signExtend(id.Value()&decimalMask, decimalBits)
		return rdf.NewLiteralWithDatatype(formatDecimal(unscaled, scale), rdf.XSDDecimal), nil
	case KindBoolean:
		return rdf.NewBooleanLiteral(id.Value() != 0), nil
	case KindDate:
		days := signExtend(id.Value(), intBits)
		t := time.Unix(days*86400, 0).UTC()
		return rdf.NewLiteralWithDatatype(t.Format(time.DateOnly), rdf.XSDDate), nil
	case KindDateTime:
		ms := signExtend(id.Value(), intBits)
		t := time.UnixMilli(ms).UTC()
		return rdf.NewLiteralWithDatatype(t.Format(dateTimeLayout), rdf.XSDDateTime), nil
	default:
		return nil, fmt.Errorf("node id %s is not inline", id)
	}
}

func signExtend(v uint64, bits uint) int64 {
	shift := 64 - bits
	return int64(v<<shift) >> shift // #nosec G115 - intentional bit-pattern conversion
}

func inlineInteger(lex string) (NodeID, bool) {
	v, err := strconv.ParseInt(lex, 10, 64)
	if err != nil || v < minInline || v > maxInline {
		return 0, false
	}
	if strconv.FormatInt(v, 10) != lex {
		return 0, false
	}
	return New(KindInteger, uint64(v)), true // #nosec G115 - masked to 56 bits
}

func inlineBoolean(lex string) (NodeID, bool) {
	switch lex {
	case "true":
		return New(KindBoolean, 1), true
	case "false":
		return New(KindBoolean, 0), true
	}
	return 0, false
}

func inlineDecimal(lex string) (NodeID, bool) {
	digits := strings.TrimPrefix(lex, "-")
	intPart, frac, hasDot := strings.Cut(digits, ".")
	if intPart == "" || (hasDot && frac == "") || len(frac) > maxScale {
		return 0, false
	}
	if !allDigits(intPart) || !allDigits(frac) {
		return 0, false
	}

	unscaled, err := strconv.ParseInt(intPart+frac, 10, 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(lex, "-") {
		unscaled = -unscaled
	}
	if unscaled < minDecimal || unscaled > maxDecimal {
		return 0, false
	}

	scale := len(frac)
	if formatDecimal(unscaled, scale) != lex {
		return 0, false
	}
	value := uint64(scale)<<decimalBits | uint64(unscaled)&decimalMask // #nosec G115 - masked to 48 bits
	return New(KindDecimal, value), true
}

func formatDecimal(unscaled int64, scale int) string {
	neg := unscaled < 0
	if neg {
		unscaled = -unscaled
	}
	s := strconv.FormatInt(unscaled, 10)
	if scale > 0 {
		if len(s) <= scale {
			s = strings.Repeat("0", scale-len(s)+1) + s
		}
		s = s[:len(s)-scale] + "." + s[len(s)-scale:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func inlineDate(lex string) (NodeID, bool) {
	t, err := time.Parse(time.DateOnly, lex)
	if err != nil || t.Format(time.DateOnly) != lex {
		return 0, false
	}
	days := t.Unix() / 86400
	if days < minInline || days > maxInline {
		return 0, false
	}
	return New(KindDate, uint64(days)), true // #nosec G115 - masked to 56 bits
}

func inlineDateTime(lex string) (NodeID, bool) {
	if !strings.HasSuffix(lex, "Z") {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, lex)
	if err != nil || t.Nanosecond()%int(time.Millisecond) != 0 {
		return 0, false
	}
	if t.UTC().Format(dateTimeLayout) != lex {
		return 0, false
	}
	ms := t.UnixMilli()
	if ms < minInline || ms > maxInline {
		return 0, false
	}
	return New(KindDateTime, uint64(ms)), true // #nosec G115 - masked to 56 bits
}
