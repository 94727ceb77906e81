// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"iter"
	"slices"
)

// Mapping is an insertion-ordered mapping from string keys to tree values.
// The zero value is not usable; create instances with NewMapping.
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping creates an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// MappingOf builds a Mapping from alternating key/value arguments.
// It panics on an odd argument count or a non-string key, so it is meant
// for literals in code and tests.
func MappingOf(kv ...any) *Mapping {
	if len(kv)%2 != 0 {
		panic("tree.MappingOf: odd number of arguments")
	}
	m := NewMapping()
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic("tree.MappingOf: key is not a string")
		}
		m.Set(key, kv[i+1])
	}
	return m
}

// Len returns the number of entries. A nil Mapping has length zero.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Has reports whether key is present.
func (m *Mapping) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Get returns the value stored under key.
func (m *Mapping) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set stores v under key. A new key is appended at the end; an existing key
// keeps its position and has its value replaced.
func (m *Mapping) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Delete removes key and reports whether it was present.
func (m *Mapping) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k string) bool { return k == key })
	return true
}

// Rename moves the value of oldKey to newKey. When newKey does not exist it
// takes over the position of oldKey; otherwise newKey keeps its position and
// its value is replaced. Rename reports whether oldKey was present.
func (m *Mapping) Rename(oldKey, newKey string) bool {
	v, ok := m.Get(oldKey)
	if !ok {
		return false
	}
	if oldKey == newKey {
		return true
	}
	if m.Has(newKey) {
		m.values[newKey] = v
		m.Delete(oldKey)
		return true
	}
	idx := slices.Index(m.keys, oldKey)
	m.keys[idx] = newKey
	delete(m.values, oldKey)
	m.values[newKey] = v
	return true
}

// Keys returns a copy of the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// All iterates over the entries in insertion order. The key set is
// snapshotted when iteration starts; entries deleted during iteration are
// skipped and entries added during iteration are not visited.
func (m *Mapping) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, k := range m.Keys() {
			v, ok := m.values[k]
			if !ok {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Mapping returns the nested mapping stored under key.
func (m *Mapping) Mapping(key string) (*Mapping, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Mapping)
	return sub, ok
}

// String returns the scalar stored under key.
func (m *Mapping) String(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	return Scalar(v)
}

// Update copies every entry of src into m, overwriting existing keys.
// Values are deep-copied so m never aliases src.
func (m *Mapping) Update(src *Mapping) {
	for k, v := range src.All() {
		m.Set(k, DeepCopy(v))
	}
}

// Clone returns a deep copy of m.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := &Mapping{
		keys:   make([]string, 0, len(m.keys)),
		values: make(map[string]any, len(m.values)),
	}
	for _, k := range m.keys {
		out.keys = append(out.keys, k)
		out.values[k] = DeepCopy(m.values[k])
	}
	return out
}

// DeepCopy returns a copy of v that shares no mutable state with it.
func DeepCopy(v any) any {
	switch x := v.(type) {
	case *Mapping:
		return x.Clone()
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = DeepCopy(item)
		}
		return out
	default:
		return v
	}
}
