// SPDX-License-Identifier: MPL-2.0

package tree

import "strings"

// Scalar returns the string form of a scalar value. It reports false for
// mappings and sequences. A nil value is the empty scalar.
func Scalar(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	default:
		return "", false
	}
}

// Truthy reports whether v is a YAML-style true value.
func Truthy(v any) bool {
	s, ok := Scalar(v)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

// Sequence returns v as a sequence. A scalar becomes a one-element sequence
// and nil becomes an empty one; a mapping reports false.
func Sequence(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil:
		return []any{}, true
	case []any:
		return x, true
	case *Mapping:
		return nil, false
	default:
		return []any{x}, true
	}
}

// Strings converts a sequence of scalars to strings. Non-scalar items are
// reported as false.
func Strings(seq []any) ([]string, bool) {
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		s, ok := Scalar(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// SequenceOf builds a sequence value from strings.
func SequenceOf(items ...string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
