// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"regexp"

	"github.com/esm-tools/esmenv/pkg/tree"
)

const maxVariablePasses = 16

var (
	variableRef      = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)
	wholeVariableRef = regexp.MustCompile(`^\$\{([A-Za-z0-9_.\-]+)\}$`)
)

// ResolveVariables replaces ${a.b.c} references in scalar values. A reference
// is looked up relative to the top-level section holding the value first, then
// from root. References that do not resolve (shell variables such as ${PATH})
// are left untouched. A value consisting of a single reference to a mapping or
// sequence is replaced by a copy of that structure.
func (l *Loader) ResolveVariables(root *tree.Mapping) error {
	if root == nil {
		return nil
	}
	for range maxVariablePasses {
		changed := false
		for section, v := range root.All() {
			scope, _ := v.(*tree.Mapping)
			nv, c := substitute(root, scope, v)
			if c {
				root.Set(section, nv)
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
	return fmt.Errorf("%w after %d passes", ErrVariableCycle, maxVariablePasses)
}

func substitute(root, scope *tree.Mapping, v any) (any, bool) {
	switch x := v.(type) {
	case string:
		return substituteString(root, scope, x)
	case []any:
		changed := false
		for i, item := range x {
			if nv, c := substitute(root, scope, item); c {
				x[i] = nv
				changed = true
			}
		}
		return x, changed
	case *tree.Mapping:
		changed := false
		for k, child := range x.All() {
			if nv, c := substitute(root, scope, child); c {
				x.Set(k, nv)
				changed = true
			}
		}
		return x, changed
	default:
		return v, false
	}
}

func substituteString(root, scope *tree.Mapping, s string) (any, bool) {
	if m := wholeVariableRef.FindStringSubmatch(s); m != nil {
		if ref, ok := lookupReference(root, scope, m[1]); ok {
			if _, isScalar := ref.(string); !isScalar {
				return tree.DeepCopy(ref), true
			}
		}
	}

	out := variableRef.ReplaceAllStringFunc(s, func(match string) string {
		name := variableRef.FindStringSubmatch(match)[1]
		ref, ok := lookupReference(root, scope, name)
		if !ok {
			return match
		}
		if str, isScalar := ref.(string); isScalar {
			return str
		}
		return match
	})
	return out, out != s
}

func lookupReference(root, scope *tree.Mapping, name string) (any, bool) {
	if scope != nil {
		if v, ok := tree.Lookup(scope, name); ok && v != nil {
			return v, true
		}
	}
	v, ok := tree.Lookup(root, name)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
