// Package state provides the key/value store attached to suite instances and test cases.
//
// Cloning a store copies each value by assignment. Maps, slices and pointers therefore
// stay shared between the clones unless the value implements Cloner; store such values
// behind a Cloner, or replace them with Write instead of mutating them, when a test must
// not see another test's changes.
package state

import "maps"

// Cloner is implemented by values that need more than an assignment copy when a
// store is cloned for a new suite instance.
type Cloner interface {
	Clone() any
}

// Store is a key/value container with override-merge semantics.
// A Store is owned by exactly one suite instance or test case and is not safe for
// concurrent use.
type Store struct {
	data map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]any)}
}

// FromMap creates a store seeded with a copy of m.
func FromMap(m map[string]any) *Store {
	s := New()
	maps.Copy(s.data, m)
	return s
}

// Write sets key to value, overwriting any previous value.
func (s *Store) Write(key string, value any) {
	s.data[key] = value
}

// Read returns the value stored under key, or nil when the key is absent.
func (s *Store) Read(key string) any {
	return s.data[key]
}

// Lookup returns the value stored under key and whether it was present.
func (s *Store) Lookup(key string) (any, bool) {
	v, ok := s.data[key]
	return v, ok
}

// Edit replaces the value under key with fn applied to the current value.
// fn receives nil when the key is absent.
func (s *Store) Edit(key string, fn func(any) any) {
	s.Write(key, fn(s.Read(key)))
}

// Dump returns a copy of the full mapping. The result is never nil.
func (s *Store) Dump() map[string]any {
	out := make(map[string]any, len(s.data))
	maps.Copy(out, s.data)
	return out
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	return len(s.data)
}

// Merge returns a new store holding s's entries overlaid by other's entries.
// Neither s nor other is modified.
func (s *Store) Merge(other *Store) *Store {
	out := FromMap(s.data)
	if other != nil {
		maps.Copy(out.data, other.data)
	}
	return out
}

// Clone returns a value-level copy of the store. Values implementing Cloner are
// cloned, everything else is copied by assignment: scalars and strings are
// independent afterwards, but maps, slices and pointers are shared with s.
func (s *Store) Clone() *Store {
	out := &Store{data: make(map[string]any, len(s.data))}
	for k, v := range s.data {
		if c, ok := v.(Cloner); ok {
			v = c.Clone()
		}
		out.data[k] = v
	}
	return out
}
