// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/internal/config"
)

// newConfigCommand creates the `esmenv config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage esmenv configuration",
		Long: `Manage esmenv configuration.

Configuration is stored in:
  - Linux: ~/.config/esmenv/config.cue
  - macOS: ~/Library/Application Support/esmenv/config.cue
  - Windows: %APPDATA%\esmenv\config.cue

Every value can be overridden with an ESMENV_<KEY> environment variable,
e.g. ESMENV_MACHINES_DIR or ESMENV_UI_VERBOSE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd)
			if err != nil {
				return err
			}
			showConfig(s.stdout, s.cfg, s.cfgPath)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, created, err := config.CreateDefaultConfig("")
			if err != nil {
				return classifyError(err, "create configuration")
			}
			if !created {
				fmt.Fprintf(cmd.OutOrStdout(), "Configuration already exists at %s\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, exists, err := config.FilePath(config.LoadOptions{ConfigFilePath: app.cfgFile})
			if err != nil {
				return err
			}
			state := SuccessStyle.Render("(exists)")
			if !exists {
				state = SubtitleStyle.Render("(not created, using defaults)")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s %s\n", path, state)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	unset := SubtitleStyle.Render("(not set)")

	value := func(s string) string {
		if s == "" {
			return unset
		}
		return valueStyle.Render(s)
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("machines_dir"), value(cfg.MachinesDir))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("function_path"), value(cfg.FunctionPath))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("header_script"), value(cfg.HeaderScript))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("set_e"), valueStyle.Render(fmt.Sprintf("%v", cfg.SetE)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("provenance"), valueStyle.Render(fmt.Sprintf("%v", cfg.Provenance)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("log_level"), value(cfg.LogLevel.String()))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("ui"))
	fmt.Fprintf(w, "  color_scheme: %s\n", valueStyle.Render(cfg.UI.ColorScheme.String()))
	fmt.Fprintf(w, "  verbose: %s\n", valueStyle.Render(fmt.Sprintf("%v", cfg.UI.Verbose)))
}
