// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/pkg/environment"
	"github.com/esm-tools/esmenv/pkg/loader"
	"github.com/esm-tools/esmenv/pkg/tree"
)

type (
	// compositeFlags name the files a composite configuration is built from.
	compositeFlags struct {
		machine      string
		hostname     string
		machinesDir  string
		functionPath string
		general      string
		modelFiles   []string
	}

	// resolveFlags select what is resolved from the composite.
	resolveFlags struct {
		mode  string
		model string
	}
)

func (f *compositeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.machine, "machine", "", "machine configuration file (default: detected from the hostname)")
	fs.StringVar(&f.hostname, "hostname", "", "hostname used for machine detection (default: this host)")
	fs.StringVar(&f.machinesDir, "machines-dir", "", "directory containing all_machines.yaml (overrides machines_dir)")
	fs.StringVar(&f.functionPath, "function-path", "", "root of the setup files (overrides function_path)")
	fs.StringVar(&f.general, "general", "", "general/coupled-setup configuration file")
	fs.StringArrayVar(&f.modelFiles, "model-file", nil, "model configuration as name=path or path (repeatable)")
}

func (f *resolveFlags) register(cmd *cobra.Command, withMode bool) {
	fs := cmd.Flags()
	if withMode {
		fs.StringVar(&f.mode, "mode", string(environment.RunModeRuntime), "run mode: compiletime or runtime")
	}
	fs.StringVar(&f.model, "model", "", "resolve only this model section")
}

// newLoader builds a loader from flags, falling back to the configuration.
func (s *session) newLoader(f *compositeFlags) *loader.Loader {
	machinesDir := f.machinesDir
	if machinesDir == "" {
		machinesDir = s.cfg.MachinesDir
	}
	functionPath := f.functionPath
	if functionPath == "" {
		functionPath = s.cfg.FunctionPath
	}
	return loader.New(
		loader.WithMachinesDir(machinesDir),
		loader.WithFunctionPath(functionPath),
		loader.WithLogger(s.logger),
	)
}

// loadComposite loads the composite configuration named by f.
func (s *session) loadComposite(f *compositeFlags) (*tree.Mapping, *loader.Loader, error) {
	spec := loader.CompositeSpec{
		Machine:  f.machine,
		Hostname: f.hostname,
		General:  f.general,
	}
	for _, arg := range f.modelFiles {
		mf, err := loader.ParseModelFile(arg)
		if err != nil {
			return nil, nil, err
		}
		spec.Models = append(spec.Models, mf)
	}

	l := s.newLoader(f)
	composite, err := l.LoadComposite(spec)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Debug("composite loaded", "sections", composite.Keys())
	return composite, l, nil
}

// resolve loads the composite and resolves it for the mode in r.
func (s *session) resolve(f *compositeFlags, r *resolveFlags, mode string) (*environment.Environment, error) {
	runMode, err := environment.ParseRunMode(mode)
	if err != nil {
		return nil, err
	}

	composite, l, err := s.loadComposite(f)
	if err != nil {
		return nil, err
	}

	opts := []environment.Option{
		environment.WithLoader(l),
		environment.WithLogger(s.logger),
	}
	if r.model != "" {
		opts = append(opts, environment.WithModel(r.model))
	}

	env, err := environment.New(runMode, composite, opts...)
	if err != nil {
		return nil, fmt.Errorf("resolve %s environment: %w", runMode, err)
	}
	return env, nil
}
