// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMachineCommand(app *App) *cobra.Command {
	var flags compositeFlags

	cmd := &cobra.Command{
		Use:   "machine [hostname]",
		Short: "Show the machine detected for a hostname",
		Long: `Match a hostname (default: this host) against the login and compute node
patterns of all_machines.yaml and print the machine name and its
configuration file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				flags.hostname = args[0]
			}
			return classifyError(runMachine(cmd, app, &flags), "detect machine")
		},
	}

	cmd.Flags().StringVar(&flags.machinesDir, "machines-dir", "", "directory containing all_machines.yaml (overrides machines_dir)")

	return cmd
}

func runMachine(cmd *cobra.Command, app *App, flags *compositeFlags) error {
	s, err := app.newSession(cmd)
	if err != nil {
		return err
	}
	m, err := s.newLoader(flags).DetectMachine(flags.hostname)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.stdout, "%s: %s\n", CmdStyle.Render("machine"), SuccessStyle.Render(m.Name))
	fmt.Fprintf(s.stdout, "%s: %s\n", CmdStyle.Render("config"), m.ConfigPath)
	return nil
}
