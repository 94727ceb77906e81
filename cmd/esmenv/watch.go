// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/esm-tools/esmenv/internal/watch"
	"github.com/esm-tools/esmenv/pkg/loader"
)

// watchTargets returns the files the composite configuration of f is read
// from and the setup root, if one is configured.
func (s *session) watchTargets(f *compositeFlags) (files, roots []string, err error) {
	machine := f.machine
	if machine == "" {
		m, err := s.newLoader(f).DetectMachine(f.hostname)
		if err != nil {
			return nil, nil, err
		}
		machine = m.ConfigPath
	}
	files = append(files, machine)
	if f.general != "" {
		files = append(files, f.general)
	}
	for _, arg := range f.modelFiles {
		mf, err := loader.ParseModelFile(arg)
		if err != nil {
			return nil, nil, err
		}
		files = append(files, mf.Path)
	}

	if root := s.newLoader(f).FunctionPath(); root != "" {
		roots = append(roots, root)
	}
	return files, roots, nil
}

// watchEnv prints commands, then re-renders the environment each time a
// configuration file changes until ctx is cancelled. Render failures are
// logged and do not stop the watch.
func (s *session) watchEnv(ctx context.Context, flags *envFlags, mode string, commands []string) error {
	files, roots, err := s.watchTargets(&flags.composite)
	if err != nil {
		return err
	}

	w, err := watch.New(watch.Config{
		Files:  files,
		Roots:  roots,
		Stderr: s.stderr,
		OnChange: func(_ context.Context, changed []string) error {
			s.logger.Info("configuration changed", "files", changed)
			commands, err := s.renderCommands(&flags.composite, &flags.resolve, &flags.render, mode)
			if err != nil {
				s.logger.Error("render failed", "error", err)
				return nil
			}
			fmt.Fprintln(s.stdout)
			printCommands(s.stdout, commands)
			return nil
		},
	})
	if err != nil {
		return err
	}

	printCommands(s.stdout, commands)
	s.logger.Info("watching for changes", "targets", w.Targets())
	return w.Run(ctx)
}
