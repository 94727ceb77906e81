// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/esm-tools/esmenv/pkg/tree"
)

const (
	// ChoosePrefix starts every choose block key, e.g. choose_computer.name.
	ChoosePrefix = "choose_"

	wildcardBranch  = "*"
	maxChoosePasses = 32
)

// ResolveChooseBlocks evaluates every choose_<selector> block below root.
//
// The selector is looked up in the mapping holding the block, then in the
// top-level section enclosing it, then as a dotted path from root. The branch
// named after the selector's value (or "*" when none matches) is merged into
// the parent: plain keys overwrite, add_ keys are appended to the parent's
// add_ key. Blocks whose selector cannot be resolved stay in place so a later
// pass with more context can evaluate them.
func (l *Loader) ResolveChooseBlocks(root *tree.Mapping) error {
	if root == nil {
		return nil
	}
	pending := make(map[string]bool)
	for range maxChoosePasses {
		changed, err := l.chooseIn(root, root, nil, pending)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
	return fmt.Errorf("%w after %d passes", ErrChooseNotConverged, maxChoosePasses)
}

func (l *Loader) chooseIn(root, m *tree.Mapping, path tree.Path, pending map[string]bool) (bool, error) {
	changed := false
	for key, v := range m.All() {
		if !strings.HasPrefix(key, ChoosePrefix) {
			continue
		}
		blockPath := append(path[:len(path):len(path)], key)
		branches, ok := v.(*tree.Mapping)
		if !ok {
			if v == nil {
				m.Delete(key)
				changed = true
				continue
			}
			return false, &ChooseBlockError{Path: blockPath, Reason: "value is not a mapping"}
		}

		selector := strings.TrimPrefix(key, ChoosePrefix)
		value, resolved := selectorValue(root, m, path, selector)
		if !resolved {
			if !pending[blockPath.String()] {
				pending[blockPath.String()] = true
				l.logger.Debug("choose selector unresolved, leaving block in place", "block", blockPath.String())
			}
			continue
		}

		branchName := value
		branch, found := branches.Get(value)
		if !found {
			branchName = wildcardBranch
			branch, found = branches.Get(wildcardBranch)
		}
		m.Delete(key)
		changed = true
		if !found {
			l.logger.Debug("choose block has no matching branch", "block", blockPath.String(), "value", value)
			continue
		}
		l.logger.Debug("choose block resolved", "block", blockPath.String(), "branch", branchName)
		if err := mergeBranch(m, branch, blockPath); err != nil {
			return false, err
		}
	}

	for key, v := range m.All() {
		c, err := l.chooseInValue(root, v, append(path[:len(path):len(path)], key), pending)
		if err != nil {
			return false, err
		}
		changed = changed || c
	}
	return changed, nil
}

func (l *Loader) chooseInValue(root *tree.Mapping, v any, path tree.Path, pending map[string]bool) (bool, error) {
	switch x := v.(type) {
	case *tree.Mapping:
		return l.chooseIn(root, x, path, pending)
	case []any:
		changed := false
		for i, item := range x {
			c, err := l.chooseInValue(root, item, append(path[:len(path):len(path)], strconv.Itoa(i)), pending)
			if err != nil {
				return false, err
			}
			changed = changed || c
		}
		return changed, nil
	default:
		return false, nil
	}
}

// selectorValue resolves a choose selector to its scalar value. Null and
// non-scalar values count as unresolved.
func selectorValue(root, m *tree.Mapping, path tree.Path, selector string) (string, bool) {
	scopes := []*tree.Mapping{m}
	if len(path) > 0 {
		if section, ok := root.Mapping(path[0]); ok && section != m {
			scopes = append(scopes, section)
		}
	}
	if root != m {
		scopes = append(scopes, root)
	}
	for _, scope := range scopes {
		v, ok := tree.Lookup(scope, selector)
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

func mergeBranch(parent *tree.Mapping, branch any, blockPath tree.Path) error {
	switch b := branch.(type) {
	case nil:
		return nil
	case *tree.Mapping:
		for k, v := range b.All() {
			if strings.HasPrefix(k, AddPrefix) {
				if err := appendEntry(parent, k, v); err != nil {
					return fmt.Errorf("%s.%s: %w", blockPath, k, err)
				}
				continue
			}
			parent.Set(k, tree.DeepCopy(v))
		}
		return nil
	default:
		return &ChooseBlockError{Path: blockPath, Reason: "branch is not a mapping"}
	}
}
