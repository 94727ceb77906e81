// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/pkg/environment"
)

type dumpFlags struct {
	composite compositeFlags
	resolve   resolveFlags
	format    string
}

func newDumpCommand(app *App) *cobra.Command {
	var flags dumpFlags

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the merged environment tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyError(runDump(cmd, app, &flags), "dump environment")
		},
	}

	flags.composite.register(cmd)
	flags.resolve.register(cmd, true)
	cmd.Flags().StringVar(&flags.format, "format", environment.FormatYAML, "output format: yaml, json or toml")

	return cmd
}

func runDump(cmd *cobra.Command, app *App, flags *dumpFlags) error {
	s, err := app.newSession(cmd)
	if err != nil {
		return err
	}
	env, err := s.resolve(&flags.composite, &flags.resolve, flags.resolve.mode)
	if err != nil {
		return err
	}
	return env.DumpConfig(s.stdout, flags.format)
}
