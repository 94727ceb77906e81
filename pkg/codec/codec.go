// SPDX-License-Identifier: MPL-2.0

// Package codec converts duplicate-preserving lists of NAME=VALUE tokens into
// mappings that keep every entry distinct, and classifies mapping keys back
// into their rendered form.
//
// A list value v is stored under the key "v[(i)][(list)]", where i is the
// smallest index not yet used for v. A plain key that would collide with an
// existing one is stored as "KEY[(n)]" with n >= 1. Both suffixes are
// stripped again by Decode.
package codec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/esm-tools/esmenv/pkg/tree"
)

// ListMarker terminates every key produced by Encode.
const ListMarker = "[(list)]"

const (
	// EntryPlain is an ordinary KEY -> VALUE export.
	EntryPlain EntryKind = iota
	// EntryList is a list-derived entry whose value is a complete NAME=VALUE token.
	EntryList
	// EntryDeduplicated is a plain export whose key carries a numeric suffix.
	EntryDeduplicated
)

// ErrMalformedInput is the sentinel error wrapped by MalformedInputError.
var ErrMalformedInput = errors.New("malformed codec input")

var indexSuffix = regexp.MustCompile(`\[\((\d+)\)\]$`)

type (
	// EntryKind classifies a key of an encoded mapping.
	EntryKind int

	// Entry is the decoded form of one mapping entry.
	Entry struct {
		Kind EntryKind
		// Name is the key with codec suffixes removed.
		Name  string
		Value any
	}

	// MalformedInputError is returned when Encode receives something other
	// than a sequence of scalars.
	MalformedInputError struct {
		Value any
	}
)

// Error implements the error interface.
func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed codec input: expected a sequence of scalars, got %s", describe(e.Value))
}

// Unwrap returns ErrMalformedInput for errors.Is() compatibility.
func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// String returns a short name for the kind.
func (k EntryKind) String() string {
	switch k {
	case EntryPlain:
		return "plain"
	case EntryList:
		return "list"
	case EntryDeduplicated:
		return "deduplicated"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Encode converts a sequence of scalars into a new mapping.
func Encode(values any) (*tree.Mapping, error) {
	dst := tree.NewMapping()
	if err := EncodeInto(dst, values); err != nil {
		return nil, err
	}
	return dst, nil
}

// EncodeInto appends a sequence of scalars to dst. Indices skip keys that
// already exist in dst, so encoding the same value twice keeps both entries.
func EncodeInto(dst *tree.Mapping, values any) error {
	seq, ok := values.([]any)
	if !ok {
		return &MalformedInputError{Value: values}
	}
	items, ok := tree.Strings(seq)
	if !ok {
		return &MalformedInputError{Value: values}
	}
	for _, s := range items {
		dst.Set(listKey(dst, s), s)
	}
	return nil
}

// AppendMapping copies every entry of src to the end of dst without
// overwriting anything already in dst.
func AppendMapping(dst, src *tree.Mapping) {
	for k, v := range src.All() {
		if strings.HasSuffix(k, ListMarker) {
			dst.Set(listKey(dst, listBase(k)), tree.DeepCopy(v))
			continue
		}
		if !dst.Has(k) {
			dst.Set(k, tree.DeepCopy(v))
			continue
		}
		base := indexSuffix.ReplaceAllString(k, "")
		dst.Set(dedupKey(dst, base), tree.DeepCopy(v))
	}
}

// AppendValue appends v to dst with the append-only rules: sequences and
// single scalars are encoded as list entries, mappings are appended entry by
// entry, nil is ignored.
func AppendValue(dst *tree.Mapping, v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case *tree.Mapping:
		AppendMapping(dst, x)
		return nil
	case []any:
		for _, item := range x {
			if err := AppendValue(dst, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return EncodeInto(dst, []any{x})
	}
}

// Decode classifies one key of an encoded mapping.
func Decode(key string, value any) Entry {
	if strings.HasSuffix(key, ListMarker) {
		return Entry{Kind: EntryList, Name: listBase(key), Value: value}
	}
	if indexSuffix.MatchString(key) {
		return Entry{Kind: EntryDeduplicated, Name: indexSuffix.ReplaceAllString(key, ""), Value: value}
	}
	return Entry{Kind: EntryPlain, Name: key, Value: value}
}

func listBase(key string) string {
	return indexSuffix.ReplaceAllString(strings.TrimSuffix(key, ListMarker), "")
}

func listKey(dst *tree.Mapping, value string) string {
	for i := 0; ; i++ {
		k := fmt.Sprintf("%s[(%d)]%s", value, i, ListMarker)
		if !dst.Has(k) {
			return k
		}
	}
}

func dedupKey(dst *tree.Mapping, base string) string {
	for n := 1; ; n++ {
		k := fmt.Sprintf("%s[(%d)]", base, n)
		if !dst.Has(k) {
			return k
		}
	}
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "scalar"
	case *tree.Mapping:
		return "mapping"
	case []any:
		return "sequence with non-scalar items"
	default:
		return fmt.Sprintf("%T", v)
	}
}
