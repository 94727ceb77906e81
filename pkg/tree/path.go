// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"strconv"
	"strings"
)

// Path addresses a value by the mapping keys (or decimal sequence indices)
// leading to it from a root value.
type Path []string

// String joins the path segments with dots.
func (p Path) String() string { return strings.Join(p, ".") }

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final segment, or "" for the empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// ParsePath splits a dotted reference such as "computer.name" into a Path.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	return Path(strings.Split(dotted, "."))
}

// FindKeyOccurrences returns the path of every mapping entry named key,
// at any depth below root, in depth-first insertion order. Each returned path
// ends with key itself.
func FindKeyOccurrences(root any, key string) []Path {
	var found []Path
	var walk func(v any, prefix Path)
	walk = func(v any, prefix Path) {
		switch x := v.(type) {
		case *Mapping:
			for k, child := range x.All() {
				p := appendPath(prefix, k)
				if k == key {
					found = append(found, p)
				}
				walk(child, p)
			}
		case []any:
			for i, child := range x {
				walk(child, appendPath(prefix, strconv.Itoa(i)))
			}
		}
	}
	walk(root, nil)
	return found
}

// FindValueAtPath returns the value of key inside the container addressed by
// prefix.
func FindValueAtPath(root any, key string, prefix Path) (any, bool) {
	parent, ok := At(root, prefix)
	if !ok {
		return nil, false
	}
	m, ok := parent.(*Mapping)
	if !ok {
		return nil, false
	}
	return m.Get(key)
}

// At returns the value addressed by p. The empty path addresses root.
func At(root any, p Path) (any, bool) {
	cur := root
	for _, seg := range p {
		switch x := cur.(type) {
		case *Mapping:
			v, ok := x.Get(seg)
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			cur = x[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// DeleteAt removes the mapping entry addressed by p and reports whether it
// existed. Sequence elements cannot be deleted.
func DeleteAt(root any, p Path) bool {
	if len(p) == 0 {
		return false
	}
	parent, ok := At(root, p.Parent())
	if !ok {
		return false
	}
	m, ok := parent.(*Mapping)
	if !ok {
		return false
	}
	return m.Delete(p.Last())
}

// Lookup resolves a dotted reference against root.
func Lookup(root *Mapping, dotted string) (any, bool) {
	return At(root, ParsePath(dotted))
}

// HasSegmentPrefix reports whether any segment of p starts with prefix.
func (p Path) HasSegmentPrefix(prefix string) bool {
	for _, seg := range p {
		if strings.HasPrefix(seg, prefix) {
			return true
		}
	}
	return false
}

func appendPath(prefix Path, seg string) Path {
	p := make(Path, len(prefix), len(prefix)+1)
	copy(p, prefix)
	return append(p, seg)
}
