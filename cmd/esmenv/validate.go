// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/internal/issue"
	"github.com/esm-tools/esmenv/internal/script"
	"github.com/esm-tools/esmenv/pkg/environment"
	"github.com/esm-tools/esmenv/pkg/loader"
)

type validateFlags struct {
	composite compositeFlags
	resolve   resolveFlags
}

func newValidateCommand(app *App) *cobra.Command {
	var flags validateFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a composite configuration",
		Long: `Load the composite configuration, check the shape of every section against
the environment schema, then resolve and render it for both run modes and
check the result parses as bash.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return classifyError(runValidate(cmd, app, &flags), "validate configuration")
		},
	}

	flags.composite.register(cmd)
	flags.resolve.register(cmd, false)

	return cmd
}

func runValidate(cmd *cobra.Command, app *App, flags *validateFlags) error {
	s, err := app.newSession(cmd)
	if err != nil {
		return err
	}

	composite, _, err := s.loadComposite(&flags.composite)
	if err != nil {
		return err
	}
	if err := loader.Validate(composite, "composite"); err != nil {
		return issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Fix the sections listed above").
			WithIssue(issue.SchemaValidationFailedId).
			Wrap(err).
			BuildError()
	}
	fmt.Fprintf(s.stdout, "%s structure\n", SuccessStyle.Render("✓"))

	var errs []error
	for _, mode := range []environment.RunMode{environment.RunModeCompiletime, environment.RunModeRuntime} {
		env, err := s.resolve(&flags.composite, &flags.resolve, string(mode))
		if err == nil {
			err = script.Validate(env.RenderCommands())
		}
		if err != nil {
			fmt.Fprintf(s.stdout, "%s %s\n", ErrorStyle.Render("✗"), mode)
			errs = append(errs, fmt.Errorf("%s: %w", mode, err))
			continue
		}
		fmt.Fprintf(s.stdout, "%s %s\n", SuccessStyle.Render("✓"), mode)
	}
	return errors.Join(errs...)
}
