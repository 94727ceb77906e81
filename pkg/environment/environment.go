// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/esm-tools/esmenv/pkg/codec"
	"github.com/esm-tools/esmenv/pkg/tree"
)

const (
	// ProvenanceVar marks environments produced by esm-tools.
	ProvenanceVar = "ENVIRONMENT_SET_BY_ESMTOOLS"

	// ModelDirPlaceholder is substituted by ReplaceModelDir.
	ModelDirPlaceholder = "${model_dir}"
)

// Dump formats accepted by DumpConfig.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
	FormatTOML = "toml"
)

// Environment is a resolved environment for one run mode.
type Environment struct {
	mode   RunMode
	merged MergedEnvironment
}

// New resolves completeConfig for mode. See Resolve for the options.
func New(mode RunMode, completeConfig *tree.Mapping, opts ...Option) (*Environment, error) {
	merged, err := Resolve(mode, completeConfig, opts...)
	if err != nil {
		return nil, err
	}
	return &Environment{mode: mode, merged: merged}, nil
}

// Mode returns the run mode the environment was resolved for.
func (e *Environment) Mode() RunMode { return e.mode }

// Merged returns the merged environment.
func (e *Environment) Merged() MergedEnvironment { return e.merged }

// AddProvenanceVar appends ENVIRONMENT_SET_BY_ESMTOOLS=TRUE to the exports.
func (e *Environment) AddProvenanceVar() {
	root := e.merged.Tree()
	ensureTarget(root, AccumulatorExportVars)
	vars, _ := root.Mapping(exportVarsKey)
	// EncodeInto only fails for non-sequence input.
	_ = codec.EncodeInto(vars, tree.SequenceOf(ProvenanceVar+"=TRUE"))
	e.merged = MergedEnvironment{root: root}
}

// ReplaceModelDir substitutes ${model_dir} in every export value.
func (e *Environment) ReplaceModelDir(modelDir string) {
	root := e.merged.Tree()
	vars, ok := root.Mapping(exportVarsKey)
	if !ok {
		return
	}
	for key, value := range vars.All() {
		vars.Set(key, replaceInValue(value, ModelDirPlaceholder, modelDir))
	}
	e.merged = MergedEnvironment{root: root}
}

func replaceInValue(v any, old, replacement string) any {
	switch x := v.(type) {
	case string:
		return strings.ReplaceAll(x, old, replacement)
	case []any:
		for i, item := range x {
			x[i] = replaceInValue(item, old, replacement)
		}
		return x
	case *tree.Mapping:
		for k, child := range x.All() {
			x.Set(k, replaceInValue(child, old, replacement))
		}
		return x
	default:
		return v
	}
}

// RenderCommands renders the environment as shell statements.
func (e *Environment) RenderCommands() []string {
	return Render(e.merged)
}

// DumpConfig writes the merged tree to w as yaml (the default for an empty
// format), json or toml. TOML output has sorted keys and null values become
// empty strings.
func (e *Environment) DumpConfig(w io.Writer, format string) error {
	root := e.merged.Tree()
	switch strings.ToLower(format) {
	case "", FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		out, err := json.MarshalIndent(root, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(out, '\n'))
		return err
	case FormatTOML:
		return toml.NewEncoder(w).Encode(tomlValue(tree.ToGo(root)))
	default:
		return &InvalidFormatError{Value: format}
	}
}

func tomlValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case map[string]any:
		for k, child := range x {
			x[k] = tomlValue(child)
		}
		return x
	case []any:
		for i, item := range x {
			x[i] = tomlValue(item)
		}
		return x
	default:
		return v
	}
}
