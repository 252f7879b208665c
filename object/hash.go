package object

import (
	"hash/fnv"
	"math"
)

// HashKey is a compact, comparable digest of a primitive value.  It
// is used by the compiler to deduplicate the constant pool without a
// linear scan.
type HashKey struct {
	// Type holds the type of the object.
	Type Type

	// Value holds the hashed value.
	Value uint64
}

// Hashable is the interface implemented by value-kinds which may be
// used as constant-pool keys.  The reference kinds are deliberately
// excluded: two distinct objects never deduplicate.
type Hashable interface {
	HashKey() HashKey
}

// HashKey returns a hash-key for the given value.
func (b *Boolean) HashKey() HashKey {
	if b.Value {
		return HashKey{Type: b.Type(), Value: 1}
	}
	return HashKey{Type: b.Type(), Value: 0}
}

// HashKey returns a hash-key for the given value.
func (i *Integer) HashKey() HashKey {
	return HashKey{Type: i.Type(), Value: uint64(i.Value)}
}

// HashKey returns a hash-key for the given value.
func (d *Double) HashKey() HashKey {
	return HashKey{Type: d.Type(), Value: math.Float64bits(d.Value)}
}

// HashKey returns a hash-key for the given value.
func (s *String) HashKey() HashKey {
	h := fnv.New64a()
	h.Write([]byte(s.Value))
	return HashKey{Type: s.Type(), Value: h.Sum64()}
}

// HashKey returns a hash-key for the given value.
func (u *Undefined) HashKey() HashKey {
	return HashKey{Type: u.Type()}
}

// HashKey returns a hash-key for the given value.
func (n *Null) HashKey() HashKey {
	return HashKey{Type: n.Type()}
}
