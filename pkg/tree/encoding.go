// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNotMapping is returned when a document does not have a mapping at its root.
	ErrNotMapping = errors.New("document root is not a mapping")

	// ErrRecursiveAlias is returned when an alias refers to a node that
	// contains it.
	ErrRecursiveAlias = errors.New("recursive alias")
)

// nodeDecoder tracks the anchors being expanded so a self-referencing alias
// fails instead of recursing forever.
type nodeDecoder struct {
	expanding map[*yaml.Node]bool
}

// ParseYAML decodes a YAML document into a Mapping, keeping key order.
// An empty document yields an empty Mapping.
func ParseYAML(data []byte) (*Mapping, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	v, err := FromNode(&doc)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case nil:
		return NewMapping(), nil
	case *Mapping:
		return x, nil
	default:
		return nil, ErrNotMapping
	}
}

// FromNode converts a decoded YAML node into a tree value. Aliases are
// expanded; an alias that refers back to one of its ancestors is an error
// wrapping ErrRecursiveAlias.
func FromNode(n *yaml.Node) (any, error) {
	d := &nodeDecoder{expanding: make(map[*yaml.Node]bool)}
	return d.value(n)
}

func (d *nodeDecoder) value(n *yaml.Node) (any, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return d.value(n.Content[0])
	case yaml.AliasNode:
		return d.alias(n)
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			return nil, nil
		}
		return n.Value, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := d.value(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		return d.mapping(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", n.Line, n.Kind)
	}
}

func (d *nodeDecoder) alias(n *yaml.Node) (any, error) {
	target := n.Alias
	if d.expanding[target] {
		return nil, fmt.Errorf("line %d: %w *%s", n.Line, ErrRecursiveAlias, n.Value)
	}
	d.expanding[target] = true
	defer delete(d.expanding, target)
	return d.value(target)
}

func (d *nodeDecoder) mapping(n *yaml.Node) (*Mapping, error) {
	m := NewMapping()
	var merged []*Mapping
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
		}
		if keyNode.ShortTag() == "!!merge" {
			sources, err := d.mergeSources(valNode)
			if err != nil {
				return nil, err
			}
			merged = append(merged, sources...)
			continue
		}
		v, err := d.value(valNode)
		if err != nil {
			return nil, err
		}
		m.Set(keyNode.Value, v)
	}
	for _, src := range merged {
		for k, v := range src.All() {
			if !m.Has(k) {
				m.Set(k, v)
			}
		}
	}
	return m, nil
}

func (d *nodeDecoder) mergeSources(n *yaml.Node) ([]*Mapping, error) {
	var nodes []*yaml.Node
	if n.Kind == yaml.SequenceNode {
		nodes = n.Content
	} else {
		nodes = []*yaml.Node{n}
	}
	out := make([]*Mapping, 0, len(nodes))
	for _, item := range nodes {
		v, err := d.value(item)
		if err != nil {
			return nil, err
		}
		m, ok := v.(*Mapping)
		if !ok {
			return nil, fmt.Errorf("line %d: merge key value is not a mapping", item.Line)
		}
		out = append(out, m)
	}
	return out, nil
}

// ToNode converts a tree value into a YAML node for encoding.
func ToNode(v any) *yaml.Node {
	switch x := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case string:
		n := &yaml.Node{Kind: yaml.ScalarNode, Value: x}
		if x == "" || strings.ContainsAny(x, "\n") {
			n.Style = yaml.DoubleQuotedStyle
		}
		return n
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			n.Content = append(n.Content, ToNode(item))
		}
		return n
	case *Mapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for k, child := range x.All() {
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: k}, ToNode(child))
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(x)}
	}
}

// MarshalYAML implements yaml.Marshaler.
func (m *Mapping) MarshalYAML() (any, error) {
	return ToNode(m), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Mapping) UnmarshalYAML(n *yaml.Node) error {
	v, err := FromNode(n)
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*m = *NewMapping()
	case *Mapping:
		*m = *x
	default:
		return ErrNotMapping
	}
	return nil
}

// MarshalJSON implements json.Marshaler and keeps insertion order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FlowString renders v as single-line flow-style YAML, e.g. `{a: b, c: [d]}`.
func FlowString(v any) (string, error) {
	n := ToNode(v)
	setFlow(n)
	out, err := yaml.Marshal(n)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func setFlow(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style |= yaml.FlowStyle
	}
	for _, child := range n.Content {
		setFlow(child)
	}
}

// ToGo converts a tree value into plain Go maps and slices for encoders that
// do not understand Mapping. Key order is lost.
func ToGo(v any) any {
	switch x := v.(type) {
	case *Mapping:
		out := make(map[string]any, x.Len())
		for k, child := range x.All() {
			out[k] = ToGo(child)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = ToGo(item)
		}
		return out
	default:
		return v
	}
}
