// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/charmbracelet/fang"

	"github.com/esm-tools/esmenv/internal/issue"
	"github.com/esm-tools/esmenv/internal/script"
	"github.com/esm-tools/esmenv/pkg/environment"
	"github.com/esm-tools/esmenv/pkg/loader"
	"github.com/esm-tools/esmenv/pkg/tree"
)

// classifyError wraps err in an ActionableError describing operation, with
// the issue guide and suggestions for the failure kinds esmenv knows about.
// Errors that already are actionable are returned unchanged.
func classifyError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return err
	}

	ctx := issue.NewErrorContext().WithOperation(operation).Wrap(err)
	switch {
	case errors.Is(err, loader.ErrMachinesDirUnset):
		ctx.WithIssue(issue.MachinesDirNotSetId).
			WithSuggestion("Pass --machines-dir or set machines_dir in the config file")
	case errors.Is(err, loader.ErrMachineNotDetected):
		ctx.WithIssue(issue.MachineNotDetectedId).
			WithSuggestions(
				"Pass the machine file with --machine",
				"Add a login_nodes or compute_nodes pattern for this host to all_machines.yaml",
			)
	case errors.Is(err, environment.ErrFileLookup), errors.Is(err, loader.ErrSetupNotFound):
		ctx.WithIssue(issue.SetupFileNotFoundId).
			WithSuggestion("Pass --function-path or set function_path in the config file")
	case errors.Is(err, environment.ErrConfigMissing):
		ctx.WithIssue(issue.ConfigMissingId)
	case errors.Is(err, environment.ErrMalformedInput):
		ctx.WithIssue(issue.MalformedInputId)
	case errors.Is(err, loader.ErrInvalidChooseBlock), errors.Is(err, loader.ErrChooseNotConverged):
		ctx.WithIssue(issue.ChooseBlockFailedId)
	case errors.Is(err, loader.ErrVariableCycle):
		ctx.WithIssue(issue.VariableCycleId)
	case errors.Is(err, environment.ErrInvalidRunMode):
		ctx.WithIssue(issue.InvalidRunModeId).
			WithSuggestion("Use compiletime or runtime")
	case errors.Is(err, script.ErrSyntax):
		ctx.WithIssue(issue.ScriptSyntaxErrorId)
	case errors.Is(err, fs.ErrPermission):
		ctx.WithIssue(issue.PermissionDeniedId)
	case errors.Is(err, loader.ErrInvalidModelFile), errors.Is(err, fs.ErrNotExist),
		errors.Is(err, tree.ErrNotMapping), errors.Is(err, tree.ErrRecursiveAlias):
		ctx.WithIssue(issue.ConfigLoadFailedId).
			WithSuggestions(
				"Check the paths given to --machine, --general and --model-file",
				"Check that the file is a YAML mapping without recursive anchors",
			)
	}
	return ctx.BuildError()
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// errorHandler prints err and, in verbose mode, the Markdown guide attached
// to it. It is installed as the fang error handler.
func (a *App) errorHandler(w io.Writer, _ fang.Styles, err error) {
	verbose := a.isVerbose()
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	var ae *issue.ActionableError
	if !verbose || !errors.As(err, &ae) {
		return
	}
	guide := ae.Guide()
	if guide == nil {
		return
	}
	rendered, renderErr := guide.Render(a.glamourStyle())
	if renderErr != nil {
		fmt.Fprintln(w, WarningStyle.Render("Warning: ")+"failed to render help: "+renderErr.Error())
		return
	}
	fmt.Fprint(w, rendered)
}
