package storage

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aleksaelezovic/trigo-tdb/pkg/store"
)

const (
	nameSeparator = 0x00
	// sequences live under a leading separator byte so they can never
	// collide with a named key space
	sequencePrefix = "\x00seq\x00"
)

// keyspace namespaces every key of one named index or object file inside a
// shared engine: name + 0x00 + key.
type keyspace struct {
	name   string
	prefix []byte
	end    []byte
}

func newKeyspace(name string) (keyspace, error) {
	if name == "" || strings.IndexByte(name, nameSeparator) >= 0 {
		return keyspace{}, fmt.Errorf("%w: invalid storage name %q", store.ErrConfig, name)
	}
	prefix := append([]byte(name), nameSeparator)
	end := append([]byte(name), nameSeparator+1)
	return keyspace{name: name, prefix: prefix, end: end}, nil
}

// key prefixes k with the key space's name
func (ks keyspace) key(k []byte) []byte {
	out := make([]byte, len(ks.prefix)+len(k))
	copy(out, ks.prefix)
	copy(out[len(ks.prefix):], k)
	return out
}

// strip removes the key space prefix from an engine key
func (ks keyspace) strip(k []byte) []byte {
	return bytes.Clone(k[len(ks.prefix):])
}

// bounds translates an index-relative [min, max) range into engine keys.
func (ks keyspace) bounds(min, max []byte) (lo, hi []byte) {
	lo = ks.prefix
	if min != nil {
		lo = ks.key(min)
	}
	hi = ks.end
	if max != nil {
		hi = ks.key(max)
	}
	return lo, hi
}

func sequenceKey(name string) []byte {
	return []byte(sequencePrefix + name)
}

// checkKey validates a caller key against the factory
func checkKey(f store.RecordFactory, key []byte) error {
	if len(key) != f.KeyLength {
		return fmt.Errorf("%w: key is %d bytes, index expects %d", store.ErrUsage, len(key), f.KeyLength)
	}
	return nil
}
