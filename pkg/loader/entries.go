// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"strings"

	"github.com/esm-tools/esmenv/pkg/codec"
	"github.com/esm-tools/esmenv/pkg/tree"
)

// AddPrefix marks append-only entries such as add_module_actions.
const AddPrefix = "add_"

// ApplyAddEntries flattens every add_<x> entry below root into <x>, appending
// instead of overwriting, and removes the add_ key. Entries inside unresolved
// choose_ blocks are left for the choose evaluator.
func (l *Loader) ApplyAddEntries(root *tree.Mapping) error {
	return applyAddEntries(root)
}

func applyAddEntries(m *tree.Mapping) error {
	for key, v := range m.All() {
		switch {
		case strings.HasPrefix(key, ChoosePrefix):
			continue
		case strings.HasPrefix(key, AddPrefix):
			if err := appendEntry(m, strings.TrimPrefix(key, AddPrefix), v); err != nil {
				return err
			}
			m.Delete(key)
		default:
			if err := applyAddEntriesValue(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func applyAddEntriesValue(v any) error {
	switch x := v.(type) {
	case *tree.Mapping:
		return applyAddEntries(x)
	case []any:
		for _, item := range x {
			if err := applyAddEntriesValue(item); err != nil {
				return err
			}
		}
	}
	return nil
}

// appendEntry appends v to m[key] without overwriting what is there. Sequences
// are concatenated, mappings go through the codec so duplicates survive, and
// a sequence receiving a mapping is converted to its encoded mapping form.
func appendEntry(m *tree.Mapping, key string, v any) error {
	if v == nil {
		return nil
	}
	existing, ok := m.Get(key)
	if !ok || existing == nil {
		m.Set(key, tree.DeepCopy(v))
		return nil
	}

	switch cur := existing.(type) {
	case *tree.Mapping:
		return codec.AppendValue(cur, v)
	case []any:
		if src, isMapping := v.(*tree.Mapping); isMapping {
			encoded, err := codec.Encode(cur)
			if err != nil {
				return err
			}
			codec.AppendMapping(encoded, src)
			m.Set(key, encoded)
			return nil
		}
		m.Set(key, appendItems(cur, v))
		return nil
	default:
		m.Set(key, []any{cur})
		return appendEntry(m, key, v)
	}
}

func appendItems(seq []any, v any) []any {
	if items, ok := v.([]any); ok {
		return append(seq, tree.DeepCopy(items).([]any)...)
	}
	return append(seq, v)
}
