// Package nodeid defines the fixed-width term identifier stored in index keys.
//
// A NodeID is 64 bits. The top byte is the kind; the low 56 bits are either a
// pointer into the term table's object file or an inline-encoded value.
package nodeid

import (
	"encoding/binary"
	"fmt"
)

// Size is the width of a NodeID in a record key, in bytes.
const Size = 8

type NodeID uint64

type Kind byte

const (
	KindPtr      Kind = 0x00
	KindInteger  Kind = 0x01
	KindDecimal  Kind = 0x02
	KindDate     Kind = 0x03
	KindDateTime Kind = 0x04
	KindBoolean  Kind = 0x05
	KindSpecial  Kind = 0xFF
)

const (
	kindShift = 56
	valueMask = (uint64(1) << kindShift) - 1
)

// Reserved identifiers. They never appear in a stored record.
const (
	// Any is the wildcard used in find patterns
	Any NodeID = NodeID(uint64(KindSpecial)<<kindShift | 0x01)

	// DoesNotExist is returned by lookups of terms the table has never seen
	DoesNotExist NodeID = NodeID(uint64(KindSpecial)<<kindShift | 0x02)
)

// MaxPtr is the largest pointer value that fits below the kind byte.
const MaxPtr = valueMask

func New(kind Kind, value uint64) NodeID {
	return NodeID(uint64(kind)<<kindShift | value&valueMask)
}

// FromPtr builds a pointer NodeID for an object-file identifier.
func FromPtr(ptr uint64) (NodeID, error) {
	if ptr > MaxPtr {
		return 0, fmt.Errorf("object id %d exceeds node id range", ptr)
	}
	return New(KindPtr, ptr), nil
}

func (id NodeID) Kind() Kind {
	return Kind(uint64(id) >> kindShift)
}

// Value returns the low 56 bits.
func (id NodeID) Value() uint64 {
	return uint64(id) & valueMask
}

func (id NodeID) IsPtr() bool {
	return id.Kind() == KindPtr
}

func (id NodeID) IsInline() bool {
	k := id.Kind()
	return k != KindPtr && k != KindSpecial
}

func (id NodeID) IsAny() bool {
	return id == Any
}

// IsConcrete reports whether id can appear in a stored record.
func (id NodeID) IsConcrete() bool {
	return id.Kind() != KindSpecial
}

// Put writes id big-endian into b[0:Size], so byte order matches numeric order.
func (id NodeID) Put(b []byte) {
	binary.BigEndian.PutUint64(b, uint64(id))
}

func (id NodeID) Bytes() []byte {
	b := make([]byte, Size)
	id.Put(b)
	return b
}

func FromBytes(b []byte) NodeID {
	return NodeID(binary.BigEndian.Uint64(b))
}

func (id NodeID) String() string {
	switch {
	case id == Any:
		return "[ANY]"
	case id == DoesNotExist:
		return "[DNE]"
	case id.IsPtr():
		return fmt.Sprintf("[%d]", id.Value())
	default:
		return fmt.Sprintf("[%s:%#x]", id.Kind(), id.Value())
	}
}

func (k Kind) String() string {
	switch k {
	case KindPtr:
		return "ptr"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	case KindDateTime:
		return "dateTime"
	case KindBoolean:
		return "boolean"
	case KindSpecial:
		return "special"
	default:
		return fmt.Sprintf("kind(%d)", byte(k))
	}
}
