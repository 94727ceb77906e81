// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/esm-tools/esmenv/pkg/tree"
)

const (
	// ComputerKey holds the machine layer in a composite configuration.
	ComputerKey = "computer"
	// GeneralKey holds the general/coupled-setup layer.
	GeneralKey = "general"
)

// ErrInvalidModelFile is returned by ParseModelFile for malformed arguments.
var ErrInvalidModelFile = errors.New("invalid model file argument")

type (
	// CompositeSpec names the files a composite configuration is built from.
	CompositeSpec struct {
		// Machine is the machine file. When empty the machine is detected
		// from Hostname (or the current host).
		Machine  string
		Hostname string
		// General is the optional general/coupled-setup file.
		General string
		Models  []ModelFile
	}

	// ModelFile is a model configuration file and the composite key it is
	// stored under.
	ModelFile struct {
		Name string
		Path string
	}
)

// ParseModelFile parses "name=path" or a bare path, in which case the name is
// the file name without its extension.
func ParseModelFile(arg string) (ModelFile, error) {
	name, path, found := strings.Cut(arg, "=")
	if !found {
		path = arg
		name = strings.TrimSuffix(filepath.Base(arg), filepath.Ext(arg))
	}
	name = strings.TrimSpace(name)
	path = strings.TrimSpace(path)
	if name == "" || path == "" {
		return ModelFile{}, fmt.Errorf("%w: %q (want name=path)", ErrInvalidModelFile, arg)
	}
	if name == ComputerKey || name == GeneralKey {
		return ModelFile{}, fmt.Errorf("%w: %q is a reserved section name", ErrInvalidModelFile, name)
	}
	return ModelFile{Name: name, Path: path}, nil
}

// LoadMachine loads a machine file and prepares it as the base layer: choose_
// blocks and variables are resolved against the machine itself and add_
// entries are flattened.
func (l *Loader) LoadMachine(path string) (*tree.Mapping, error) {
	machine, err := l.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := l.ResolveChooseBlocks(machine); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := l.ResolveVariables(machine); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := l.ApplyAddEntries(machine); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return machine, nil
}

// LoadComposite assembles {computer, general, <models>...} from spec and
// resolves variables and choose_ blocks across the whole composite, so model
// files can refer to ${computer.name} and similar.
func (l *Loader) LoadComposite(spec CompositeSpec) (*tree.Mapping, error) {
	machinePath := spec.Machine
	if machinePath == "" {
		m, err := l.DetectMachine(spec.Hostname)
		if err != nil {
			return nil, err
		}
		machinePath = m.ConfigPath
	}

	machine, err := l.LoadMachine(machinePath)
	if err != nil {
		return nil, err
	}
	composite := tree.MappingOf(ComputerKey, machine)

	if spec.General != "" {
		general, err := l.LoadConfig(spec.General)
		if err != nil {
			return nil, err
		}
		composite.Set(GeneralKey, unwrapSection(general, GeneralKey))
	}

	for _, mf := range spec.Models {
		if composite.Has(mf.Name) {
			return nil, fmt.Errorf("%w: section %q given twice", ErrInvalidModelFile, mf.Name)
		}
		cfg, err := l.LoadConfig(mf.Path)
		if err != nil {
			return nil, err
		}
		composite.Set(mf.Name, unwrapSection(cfg, mf.Name))
	}

	if err := l.ResolveVariables(composite); err != nil {
		return nil, err
	}
	if err := l.ResolveChooseBlocks(composite); err != nil {
		return nil, err
	}
	if err := l.ApplyAddEntries(machine); err != nil {
		return nil, err
	}
	return composite, nil
}

// unwrapSection returns the inner mapping of files written as
// "<name>: {...}" with nothing else at the top level.
func unwrapSection(cfg *tree.Mapping, name string) *tree.Mapping {
	if cfg.Len() != 1 {
		return cfg
	}
	if inner, ok := cfg.Mapping(name); ok {
		return inner
	}
	return cfg
}
