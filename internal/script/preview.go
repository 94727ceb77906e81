// SPDX-License-Identifier: MPL-2.0

package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
)

const moduleCommand = "module"

// shellVars are maintained by the interpreter itself and never reported.
var shellVars = []string{"HOME", "IFS", "OLDPWD", "OPTIND", "PWD", "UID", "EUID", "GID", "PPID"}

type (
	// Export is a variable exported by a previewed script.
	Export struct {
		Name  string
		Value string
	}

	// PreviewResult describes the effect of running a script in the virtual
	// shell.
	PreviewResult struct {
		// ModuleActions are the arguments of every module call, in order.
		ModuleActions []string
		// Sourced are the files the script tried to source. They are never
		// read.
		Sourced []string
		// Skipped are external commands that were not executed.
		Skipped []string
		// Exports are the variables the script exported or changed, sorted by
		// name.
		Exports []Export
		// ExitCode is the exit status of the script.
		ExitCode int
		Stdout   string
		Stderr   string
	}

	// previewHandlers records side effects instead of performing them.
	previewHandlers struct {
		result *PreviewResult
	}

	// emptyFile stands in for every file the script opens.
	emptyFile struct{}
)

// Preview runs commands in an in-process bash interpreter seeded with
// environ ("KEY=VALUE" entries). Calls to module are recorded rather than
// executed, sourced files are replaced by empty files and no external program
// is started. A non-zero exit status is reported in the result, not as an
// error.
func Preview(ctx context.Context, commands []string, environ []string) (*PreviewResult, error) {
	prog, err := parser().Parse(strings.NewReader(strings.Join(commands, "\n")), "script")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSyntax, err)
	}

	result := &PreviewResult{}
	h := &previewHandlers{result: result}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Env(expand.ListEnviron(environ...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.ExecHandlers(h.exec),
		interp.OpenHandler(h.open),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	err = runner.Run(ctx, prog)
	if err != nil {
		var exitStatus interp.ExitStatus
		if !errors.As(err, &exitStatus) {
			return nil, fmt.Errorf("script execution failed: %w", err)
		}
		result.ExitCode = int(exitStatus)
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.Exports = exportsOf(runner.Vars, environ)
	return result, nil
}

func (h *previewHandlers) exec(_ interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(_ context.Context, args []string) error {
		if len(args) == 0 {
			return nil
		}
		if args[0] == moduleCommand {
			h.result.ModuleActions = append(h.result.ModuleActions, strings.Join(args[1:], " "))
			return nil
		}
		h.result.Skipped = append(h.result.Skipped, strings.Join(args, " "))
		return nil
	}
}

func (h *previewHandlers) open(_ context.Context, path string, flag int, _ os.FileMode) (io.ReadWriteCloser, error) {
	if flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		h.result.Sourced = append(h.result.Sourced, path)
	}
	return emptyFile{}, nil
}

func (emptyFile) Read([]byte) (int, error)    { return 0, io.EOF }
func (emptyFile) Write(p []byte) (int, error) { return len(p), nil }
func (emptyFile) Close() error                { return nil }

// exportsOf returns the exported variables whose value differs from environ.
func exportsOf(vars map[string]expand.Variable, environ []string) []Export {
	initial := make(map[string]string, len(environ))
	for _, kv := range environ {
		name, value, _ := strings.Cut(kv, "=")
		initial[name] = value
	}

	var exports []Export
	for name, vr := range vars {
		if !vr.Exported || slices.Contains(shellVars, name) {
			continue
		}
		value := vr.String()
		if prev, ok := initial[name]; ok && prev == value {
			continue
		}
		exports = append(exports, Export{Name: name, Value: value})
	}
	slices.SortFunc(exports, func(a, b Export) int { return strings.Compare(a.Name, b.Name) })
	return exports
}

// Lookup returns the exported value of name.
func (r *PreviewResult) Lookup(name string) (string, bool) {
	for _, e := range r.Exports {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}
