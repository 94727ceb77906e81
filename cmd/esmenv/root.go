// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the esmenv command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "esmenv",
		Short: "Assemble the shell environment of an Earth system model",
		Long: TitleStyle.Render("esmenv") + SubtitleStyle.Render(" - layered environments for esm-tools") + `

esmenv merges the environment of a compute host with the environment
changes of a coupled setup and its model components, then renders the
result as module commands and exports.

` + SubtitleStyle.Render("Examples:") + `
  esmenv machine                                  Show the detected machine
  esmenv env runtime --model-file echam=echam.yaml
  esmenv env compiletime --machine levante.yaml --preview
  esmenv script run --command "srun ./echam6"     Write run_script.sh
  esmenv dump --format toml                       Print the merged environment`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "", "config file (default is $HOME/.config/esmenv/config.cue)")

	rootCmd.AddCommand(
		newEnvCommand(app),
		newScriptCommand(app),
		newDumpCommand(app),
		newMachineCommand(app),
		newValidateCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.errorHandler),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
