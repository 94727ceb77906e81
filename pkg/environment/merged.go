// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"github.com/esm-tools/esmenv/pkg/codec"
	"github.com/esm-tools/esmenv/pkg/tree"
)

// MergedEnvironment is the accumulated result of merging layers. It holds
// module_actions, export_vars and every other key of the machine layer.
// Values are immutable from the caller's point of view: accessors return
// copies and merge steps produce new values.
type MergedEnvironment struct {
	root *tree.Mapping
}

// Tree returns a copy of the full merged tree.
func (e MergedEnvironment) Tree() *tree.Mapping {
	if e.root == nil {
		return tree.NewMapping()
	}
	return e.root.Clone()
}

// ModuleActions returns the module actions in order. Non-scalar entries are
// returned in flow-style YAML.
func (e MergedEnvironment) ModuleActions() []string {
	v, _ := e.root.Get(moduleActionsKey)
	seq, ok := tree.Sequence(v)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		if s, ok := tree.Scalar(item); ok {
			out = append(out, s)
			continue
		}
		if s, err := tree.FlowString(item); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// ExportVars returns a copy of the export variables in insertion order.
func (e MergedEnvironment) ExportVars() *tree.Mapping {
	vars, ok := e.root.Mapping(exportVarsKey)
	if !ok {
		return tree.NewMapping()
	}
	return vars.Clone()
}

// IsZero reports whether e was never produced by a resolution.
func (e MergedEnvironment) IsZero() bool { return e.root == nil }

func (e MergedEnvironment) clone() MergedEnvironment {
	return MergedEnvironment{root: e.Tree()}
}

// seedEnvironment builds the initial environment from the machine layer.
func seedEnvironment(machine *tree.Mapping) (MergedEnvironment, error) {
	root := machine.Clone()
	for _, acc := range Accumulators() {
		root.Delete(acc.MarkerKey())
	}
	if err := normalize(root); err != nil {
		return MergedEnvironment{}, err
	}
	return MergedEnvironment{root: root}, nil
}

// normalize brings module_actions into sequence form and export_vars into
// mapping form.
func normalize(root *tree.Mapping) error {
	if v, ok := root.Get(moduleActionsKey); ok {
		seq, isSeq := tree.Sequence(v)
		if !isSeq {
			return &MalformedInputError{Value: v}
		}
		root.Set(moduleActionsKey, seq)
	}
	if v, ok := root.Get(exportVarsKey); ok {
		switch x := v.(type) {
		case nil:
			root.Set(exportVarsKey, tree.NewMapping())
		case *tree.Mapping:
		case []any:
			encoded, err := codec.Encode(x)
			if err != nil {
				return err
			}
			root.Set(exportVarsKey, encoded)
		default:
			return &MalformedInputError{Value: v}
		}
	}
	return nil
}

// ensureTarget creates the canonical key of acc when it is missing.
func ensureTarget(root *tree.Mapping, acc Accumulator) {
	if root.Has(acc.TargetKey()) {
		return
	}
	switch acc {
	case AccumulatorModuleActions:
		root.Set(acc.TargetKey(), []any{})
	case AccumulatorExportVars:
		root.Set(acc.TargetKey(), tree.NewMapping())
	}
}

// accumulate appends v to the transient accumulator of acc.
func accumulate(root *tree.Mapping, acc Accumulator, v any) error {
	switch acc {
	case AccumulatorModuleActions:
		seq, ok := tree.Sequence(v)
		if !ok {
			return &MalformedInputError{Value: v}
		}
		if _, ok := tree.Strings(seq); !ok {
			return &MalformedInputError{Value: v}
		}
		pending, _ := root.Get(acc.MarkerKey())
		current, ok := tree.Sequence(pending)
		if !ok {
			return &MalformedInputError{Value: pending}
		}
		root.Set(acc.MarkerKey(), append(current, tree.DeepCopy(seq).([]any)...))
		return nil
	case AccumulatorExportVars:
		pending, err := pendingExports(root)
		if err != nil {
			return err
		}
		if seq, ok := v.([]any); ok {
			encoded, err := codec.Encode(seq)
			if err != nil {
				return err
			}
			codec.AppendMapping(pending, encoded)
			return nil
		}
		return codec.AppendValue(pending, v)
	default:
		return nil
	}
}

func pendingExports(root *tree.Mapping) (*tree.Mapping, error) {
	key := AccumulatorExportVars.MarkerKey()
	v, _ := root.Get(key)
	switch x := v.(type) {
	case *tree.Mapping:
		return x, nil
	default:
		pending := tree.NewMapping()
		if err := codec.AppendValue(pending, x); err != nil {
			return nil, err
		}
		root.Set(key, pending)
		return pending, nil
	}
}

// flushAccumulators appends the transient accumulators to their canonical
// keys and removes them.
func flushAccumulators(root *tree.Mapping) error {
	for _, acc := range Accumulators() {
		pending, ok := root.Get(acc.MarkerKey())
		if !ok {
			continue
		}
		root.Delete(acc.MarkerKey())
		ensureTarget(root, acc)
		if err := normalize(root); err != nil {
			return err
		}

		switch acc {
		case AccumulatorModuleActions:
			items, ok := tree.Sequence(pending)
			if !ok {
				return &MalformedInputError{Value: pending}
			}
			current, _ := root.Get(moduleActionsKey)
			seq, _ := tree.Sequence(current)
			root.Set(moduleActionsKey, append(seq, items...))
		case AccumulatorExportVars:
			vars, _ := root.Mapping(exportVarsKey)
			if err := codec.AppendValue(vars, pending); err != nil {
				return err
			}
		}
	}
	return nil
}
