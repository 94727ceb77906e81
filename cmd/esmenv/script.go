// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/internal/issue"
	"github.com/esm-tools/esmenv/internal/script"
)

type scriptFlags struct {
	composite  compositeFlags
	resolve    resolveFlags
	render     renderFlags
	dir        string
	setE       bool
	keepHeader bool
	commands   []string
}

func newScriptCommand(app *App) *cobra.Command {
	var flags scriptFlags

	cmd := &cobra.Command{
		Use:   "script <name>",
		Short: "Write the environment and extra commands to <name>_script.sh",
		Long: `Write the environment header script, then copy it into <name>_script.sh
followed by the commands given with --command. The header script is removed
afterwards unless --keep-header is set or no --command was given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyError(runScript(cmd, app, &flags, args[0]), "write script")
		},
	}

	flags.composite.register(cmd)
	flags.resolve.register(cmd, true)
	flags.render.register(cmd)
	fs := cmd.Flags()
	fs.StringVar(&flags.dir, "dir", ".", "directory the scripts are written to")
	fs.BoolVar(&flags.setE, "set-e", false, "stop the script on the first failing command (also: set_e in config)")
	fs.BoolVar(&flags.keepHeader, "keep-header", false, "keep the header script")
	fs.StringArrayVar(&flags.commands, "command", nil, "command appended after the environment (repeatable)")

	return cmd
}

func runScript(cmd *cobra.Command, app *App, flags *scriptFlags, name string) error {
	s, err := app.newSession(cmd)
	if err != nil {
		return err
	}

	commands, err := s.renderCommands(&flags.composite, &flags.resolve, &flags.render, flags.resolve.mode)
	if err != nil {
		return err
	}
	if !flags.render.noValidate {
		if err := script.Validate(flags.commands); err != nil {
			return err
		}
	}

	m := &script.Materializer{Dir: flags.dir, HeaderName: s.cfg.HeaderScript}
	if err := m.WriteHeader(commands, flags.setE || s.cfg.SetE); err != nil {
		return scriptWriteError(err, m.HeaderPath())
	}

	if len(flags.commands) == 0 {
		fmt.Fprintf(s.stdout, "%s Wrote %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(m.HeaderPath()))
		fmt.Fprintln(s.stderr, WarningStyle.Render("Warning: ")+"no --command given; keeping the header script only")
		return nil
	}

	written, err := m.Append(flags.commands, name)
	if err != nil {
		return scriptWriteError(err, m.ScriptPath(name))
	}
	fmt.Fprintf(s.stdout, "%s Wrote %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(filepath.Join(flags.dir, written)))

	if flags.keepHeader {
		return nil
	}
	if err := m.Cleanup(); err != nil {
		s.logger.Warn("failed to remove header script", "path", m.HeaderPath(), "error", err)
	}
	return nil
}

func scriptWriteError(err error, path string) error {
	return issue.NewErrorContext().
		WithOperation("write script").
		WithResource(path).
		WithSuggestion("Check that the directory exists and is writable").
		WithIssue(issue.ScriptWriteFailedId).
		Wrap(err).
		BuildError()
}
