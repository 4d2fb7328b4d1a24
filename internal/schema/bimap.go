package schema

import (
	"fmt"

	"github.com/conorfennell/ankitab/internal/domain"
)

// BiMap is a bijective mapping. Both directions are resolved in constant time.
type BiMap[K comparable, V comparable] struct {
	fwd map[K]V
	rev map[V]K
}

// NewBiMap builds a BiMap from m. It fails with domain.ErrNotInvertible if two
// keys share a value.
func NewBiMap[K comparable, V comparable](m map[K]V) (*BiMap[K, V], error) {
	rev, err := Invert(m)
	if err != nil {
		return nil, err
	}
	fwd := make(map[K]V, len(m))
	for k, v := range m {
		fwd[k] = v
	}
	return &BiMap[K, V]{fwd: fwd, rev: rev}, nil
}

// Invert swaps keys and values of m.
func Invert[K comparable, V comparable](m map[K]V) (map[V]K, error) {
	out := make(map[V]K, len(m))
	for k, v := range m {
		if prev, ok := out[v]; ok {
			return nil, fmt.Errorf("%w: %v and %v both map to %v", domain.ErrNotInvertible, prev, k, v)
		}
		out[v] = k
	}
	return out, nil
}

// Get maps a key forward.
func (b *BiMap[K, V]) Get(k K) (V, bool) {
	v, ok := b.fwd[k]
	return v, ok
}

// Key maps a value back to its key.
func (b *BiMap[K, V]) Key(v V) (K, bool) {
	k, ok := b.rev[v]
	return k, ok
}

// Inverse returns the mapping in the other direction.
func (b *BiMap[K, V]) Inverse() *BiMap[V, K] {
	return &BiMap[V, K]{fwd: b.rev, rev: b.fwd}
}

// Len returns the number of pairs.
func (b *BiMap[K, V]) Len() int {
	return len(b.fwd)
}

// Map returns a copy of the forward mapping.
func (b *BiMap[K, V]) Map() map[K]V {
	out := make(map[K]V, len(b.fwd))
	for k, v := range b.fwd {
		out[k] = v
	}
	return out
}
