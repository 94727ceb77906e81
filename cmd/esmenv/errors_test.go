// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/fang"
	"github.com/google/go-cmp/cmp"

	"github.com/esm-tools/esmenv/internal/config"
	"github.com/esm-tools/esmenv/internal/issue"
	"github.com/esm-tools/esmenv/internal/script"
	"github.com/esm-tools/esmenv/pkg/environment"
	"github.com/esm-tools/esmenv/pkg/loader"
	"github.com/esm-tools/esmenv/pkg/tree"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		err         error
		wantIssueID issue.Id
		wantInMsg   string
	}{
		{
			name:        "machines dir unset",
			err:         fmt.Errorf("detect machine: %w", loader.ErrMachinesDirUnset),
			wantIssueID: issue.MachinesDirNotSetId,
			wantInMsg:   "--machines-dir",
		},
		{
			name:        "machine not detected",
			err:         fmt.Errorf("host laptop: %w", loader.ErrMachineNotDetected),
			wantIssueID: issue.MachineNotDetectedId,
			wantInMsg:   "--machine",
		},
		{
			name:        "setup file lookup",
			err:         fmt.Errorf("wrapped: %w", environment.ErrFileLookup),
			wantIssueID: issue.SetupFileNotFoundId,
			wantInMsg:   "--function-path",
		},
		{
			name:        "missing configuration",
			err:         &environment.ConfigMissingError{Path: "fesom", Reason: "model not found in configuration"},
			wantIssueID: issue.ConfigMissingId,
		},
		{
			name:        "variable cycle",
			err:         fmt.Errorf("wrapped: %w", loader.ErrVariableCycle),
			wantIssueID: issue.VariableCycleId,
		},
		{
			name:        "script syntax",
			err:         &script.SyntaxError{Line: 1, Command: `echo "`, Err: errors.New("reached EOF")},
			wantIssueID: issue.ScriptSyntaxErrorId,
		},
		{
			name:        "permission denied",
			err:         fmt.Errorf("wrapped: %w", os.ErrPermission),
			wantIssueID: issue.PermissionDeniedId,
		},
		{
			name:        "missing file",
			err:         &os.PathError{Op: "open", Path: "levante.yaml", Err: os.ErrNotExist},
			wantIssueID: issue.ConfigLoadFailedId,
			wantInMsg:   "--model-file",
		},
		{
			name:        "recursive alias",
			err:         fmt.Errorf("levante.yaml: %w", fmt.Errorf("line 1: %w *x", tree.ErrRecursiveAlias)),
			wantIssueID: issue.ConfigLoadFailedId,
			wantInMsg:   "recursive anchors",
		},
		{
			name: "unclassified",
			err:  errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := classifyError(tt.err, "render environment")
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("classifyError() = %T, want *issue.ActionableError", err)
			}
			if ae.Issue != tt.wantIssueID {
				t.Errorf("Issue = %d, want %d", ae.Issue, tt.wantIssueID)
			}
			if ae.Operation != "render environment" {
				t.Errorf("Operation = %q, want %q", ae.Operation, "render environment")
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("classifyError() does not wrap %v", tt.err)
			}
			if tt.wantInMsg != "" && !strings.Contains(ae.Format(false), tt.wantInMsg) {
				t.Errorf("Format() = %q, want it to contain %q", ae.Format(false), tt.wantInMsg)
			}
		})
	}
}

func TestClassifyError_Suggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{
			name: "machine not detected",
			err:  &loader.MachineNotDetectedError{Hostname: "laptop", Index: "all_machines.yaml"},
			want: []string{
				"Pass the machine file with --machine",
				"Add a login_nodes or compute_nodes pattern for this host to all_machines.yaml",
			},
		},
		{
			name: "missing file",
			err:  &os.PathError{Op: "open", Path: "echam.yaml", Err: os.ErrNotExist},
			want: []string{
				"Check the paths given to --machine, --general and --model-file",
				"Check that the file is a YAML mapping without recursive anchors",
			},
		},
		{
			name: "invalid run mode",
			err:  fmt.Errorf("wrapped: %w", environment.ErrInvalidRunMode),
			want: []string{"Use compiletime or runtime"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var ae *issue.ActionableError
			if !errors.As(classifyError(tt.err, "render environment"), &ae) {
				t.Fatal("classifyError() did not return an *issue.ActionableError")
			}
			if diff := cmp.Diff(tt.want, ae.Suggestions); diff != "" {
				t.Errorf("Suggestions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassifyError_PassesThrough(t *testing.T) {
	t.Parallel()

	if err := classifyError(nil, "anything"); err != nil {
		t.Errorf("classifyError(nil) = %v, want nil", err)
	}

	actionable := issue.NewErrorContext().
		WithOperation("write script").
		WithIssue(issue.ScriptWriteFailedId).
		Wrap(errors.New("disk full")).
		BuildError()
	if got := classifyError(actionable, "render environment"); got != actionable {
		t.Errorf("classifyError() = %v, want the original actionable error", got)
	}
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	err := classifyError(fmt.Errorf("wrapped: %w", loader.ErrMachinesDirUnset), "detect machine")

	t.Run("quiet", func(t *testing.T) {
		t.Parallel()

		app := newTestApp(nil)
		var buf bytes.Buffer
		app.errorHandler(&buf, fang.Styles{}, err)
		out := buf.String()
		if !strings.Contains(out, "failed to detect machine") {
			t.Errorf("errorHandler() output = %q, want the error message", out)
		}
		if strings.Contains(out, "Error chain:") {
			t.Errorf("errorHandler() output = %q, want no error chain without verbose", out)
		}
	})

	t.Run("verbose from config", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.UI.Verbose = true
		app := newTestApp(cfg)
		app.cfg = cfg

		var buf bytes.Buffer
		app.errorHandler(&buf, fang.Styles{}, err)
		out := buf.String()
		if !strings.Contains(out, "Error chain:") {
			t.Errorf("errorHandler() output = %q, want the error chain", out)
		}
		if !strings.Contains(out, "machines") {
			t.Errorf("errorHandler() output = %q, want the rendered guide", out)
		}
	})
}
