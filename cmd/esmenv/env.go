// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/internal/script"
	"github.com/esm-tools/esmenv/pkg/environment"
)

type (
	// renderFlags adjust the rendered commands.
	renderFlags struct {
		provenance bool
		modelDir   string
		noValidate bool
	}

	envFlags struct {
		composite compositeFlags
		resolve   resolveFlags
		render    renderFlags
		preview   bool
		watch     bool
	}
)

func (f *renderFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&f.provenance, "provenance", false, "export ENVIRONMENT_SET_BY_ESMTOOLS=TRUE (also: provenance in config)")
	fs.StringVar(&f.modelDir, "model-dir", "", "replace ${model_dir} in exported values")
	fs.BoolVar(&f.noValidate, "no-validate", false, "skip the bash syntax check of the rendered commands")
}

func newEnvCommand(app *App) *cobra.Command {
	var flags envFlags

	cmd := &cobra.Command{
		Use:       "env <compiletime|runtime>",
		Short:     "Print the environment commands for a run mode",
		ValidArgs: []string{string(environment.RunModeCompiletime), string(environment.RunModeRuntime)},
		Args:      cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyError(runEnv(cmd, app, &flags, args[0]), "render environment")
		},
	}

	flags.composite.register(cmd)
	flags.resolve.register(cmd, false)
	flags.render.register(cmd)
	cmd.Flags().BoolVar(&flags.preview, "preview", false, "run the commands in a virtual shell and report their effect")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "render again whenever one of the configuration files changes")
	cmd.MarkFlagsMutuallyExclusive("preview", "watch")

	return cmd
}

func runEnv(cmd *cobra.Command, app *App, flags *envFlags, mode string) error {
	s, err := app.newSession(cmd)
	if err != nil {
		return err
	}

	commands, err := s.renderCommands(&flags.composite, &flags.resolve, &flags.render, mode)
	if err != nil {
		return err
	}

	if flags.watch {
		return s.watchEnv(cmd.Context(), flags, mode, commands)
	}
	if !flags.preview {
		printCommands(s.stdout, commands)
		return nil
	}

	result, err := script.Preview(cmd.Context(), commands, app.Environ())
	if err != nil {
		return err
	}
	writePreview(s.stdout, result)
	if result.ExitCode != 0 {
		return &ExitError{Code: result.ExitCode, Err: fmt.Errorf("preview exited with status %d", result.ExitCode)}
	}
	return nil
}

// renderCommands resolves the environment and renders it, applying the
// provenance, model directory and validation settings.
func (s *session) renderCommands(cf *compositeFlags, rf *resolveFlags, flags *renderFlags, mode string) ([]string, error) {
	env, err := s.resolve(cf, rf, mode)
	if err != nil {
		return nil, err
	}
	if flags.provenance || s.cfg.Provenance {
		env.AddProvenanceVar()
	}
	if flags.modelDir != "" {
		env.ReplaceModelDir(flags.modelDir)
	}

	commands := env.RenderCommands()
	if !flags.noValidate {
		if err := script.Validate(commands); err != nil {
			return nil, err
		}
	}
	s.logger.Debug("rendered environment", "mode", env.Mode(), "lines", len(commands))
	return commands, nil
}

func printCommands(w io.Writer, commands []string) {
	for _, line := range commands {
		fmt.Fprintln(w, line)
	}
}

func writePreview(w io.Writer, result *script.PreviewResult) {
	section := func(title string, lines []string) {
		fmt.Fprintln(w, previewSectionStyle.Render(title))
		if len(lines) == 0 {
			fmt.Fprintln(w, "  "+SubtitleStyle.Render("(none)"))
			return
		}
		for _, line := range lines {
			fmt.Fprintln(w, "  "+line)
		}
	}

	section("Module actions", result.ModuleActions)
	section("Sourced files", result.Sourced)

	exports := make([]string, 0, len(result.Exports))
	for _, e := range result.Exports {
		exports = append(exports, CmdStyle.Render(e.Name)+"="+e.Value)
	}
	section("Exported variables", exports)

	if len(result.Skipped) > 0 {
		section("Commands not executed", result.Skipped)
	}
	if out := strings.TrimRight(result.Stdout+result.Stderr, "\n"); out != "" {
		section("Output", strings.Split(out, "\n"))
	}
}
