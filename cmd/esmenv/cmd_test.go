// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/esm-tools/esmenv/internal/config"
	"github.com/esm-tools/esmenv/internal/issue"
	"github.com/esm-tools/esmenv/internal/script"
)

const (
	machineYAML = `name: levante
module_actions:
  - purge
  - load intel
export_vars:
  NETCDF_ROOT: /sw/netcdf
`
	echamYAML = `echam:
  version: "6.3"
  runtime_environment_changes:
    add_export_vars:
      - "OMP_NUM_THREADS=4"
  compiletime_environment_changes:
    add_module_actions:
      - load cmake
`
	machinesIndexYAML = `levante:
  login_nodes: 'levante[0-9]*'
  compute_nodes: 'l[0-9]{5}'
albedo:
  login_nodes: albedo[0-1]
`
)

// staticConfig serves a fixed configuration.
type staticConfig struct {
	cfg *config.Config
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, string, error) {
	return s.cfg, "", nil
}

type fixture struct {
	dir         string
	machine     string
	echam       string
	machinesDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:         dir,
		machine:     filepath.Join(dir, "levante.yaml"),
		echam:       filepath.Join(dir, "echam.yaml"),
		machinesDir: dir,
	}
	for path, content := range map[string]string{
		f.machine: machineYAML,
		f.echam:   echamYAML,
		filepath.Join(dir, "all_machines.yaml"): machinesIndexYAML,
	} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}
	}
	return f
}

func newTestApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewApp(Dependencies{
		Config:  staticConfig{cfg: cfg},
		Environ: func() []string { return []string{"PATH=/usr/bin"} },
	})
}

func execute(t *testing.T, app *App, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand(app)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestEnvCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "runtime",
			args: []string{"env", "runtime", "--machine", f.machine, "--model-file", "echam=" + f.echam},
			want: []string{"module purge", "module load intel", "", "export NETCDF_ROOT=/sw/netcdf", "export OMP_NUM_THREADS=4"},
		},
		{
			name: "compiletime",
			args: []string{"env", "compiletime", "--machine", f.machine, "--model-file", f.echam},
			want: []string{"module purge", "module load intel", "module load cmake", "", "export NETCDF_ROOT=/sw/netcdf"},
		},
		{
			name: "provenance",
			args: []string{"env", "compiletime", "--machine", f.machine, "--provenance"},
			want: []string{"module purge", "module load intel", "", "export NETCDF_ROOT=/sw/netcdf", "export ENVIRONMENT_SET_BY_ESMTOOLS=TRUE"},
		},
		{
			name: "detected machine",
			args: []string{"env", "runtime", "--machines-dir", f.machinesDir, "--hostname", "levante3"},
			want: []string{"module purge", "module load intel", "", "export NETCDF_ROOT=/sw/netcdf"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := execute(t, newTestApp(nil), tt.args...)
			if err != nil {
				t.Fatalf("env error = %v", err)
			}
			got := strings.Split(strings.TrimSuffix(stdout, "\n"), "\n")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("env output mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvCommand_ProvenanceFromConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := config.DefaultConfig()
	cfg.Provenance = true

	stdout, _, err := execute(t, newTestApp(cfg), "env", "runtime", "--machine", f.machine)
	if err != nil {
		t.Fatalf("env error = %v", err)
	}
	if !strings.Contains(stdout, "export ENVIRONMENT_SET_BY_ESMTOOLS=TRUE") {
		t.Errorf("env output missing provenance export:\n%s", stdout)
	}
}

func TestEnvCommand_Preview(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	stdout, _, err := execute(t, newTestApp(nil),
		"env", "runtime", "--machine", f.machine, "--model-file", "echam="+f.echam, "--preview")
	if err != nil {
		t.Fatalf("env --preview error = %v", err)
	}
	for _, want := range []string{"Module actions", "  purge", "  load intel", "NETCDF_ROOT=/sw/netcdf", "OMP_NUM_THREADS=4"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("preview output missing %q:\n%s", want, stdout)
		}
	}
}

func TestEnvCommand_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name      string
		args      []string
		wantIssue issue.Id
	}{
		{"invalid mode", []string{"env", "sometime", "--machine", f.machine}, issue.InvalidRunModeId},
		{"missing model", []string{"env", "runtime", "--machine", f.machine, "--model", "fesom"}, issue.ConfigMissingId},
		{"no machines dir", []string{"env", "runtime"}, issue.MachinesDirNotSetId},
		{"unknown host", []string{"env", "runtime", "--machines-dir", f.machinesDir, "--hostname", "laptop"}, issue.MachineNotDetectedId},
		{"missing file", []string{"env", "runtime", "--machine", filepath.Join(f.dir, "nope.yaml")}, issue.ConfigLoadFailedId},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := execute(t, newTestApp(nil), tt.args...)
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("env error = %v (%T), want *issue.ActionableError", err, err)
			}
			if ae.Issue != tt.wantIssue {
				t.Errorf("Issue = %d, want %d (error: %v)", ae.Issue, tt.wantIssue, err)
			}
		})
	}
}

func TestScriptCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out := t.TempDir()
	stdout, _, err := execute(t, newTestApp(nil),
		"script", "run", "--mode", "runtime", "--dir", out, "--machine", f.machine, "--set-e",
		"--command", "cd /work", "--command", "srun ./echam6")
	if err != nil {
		t.Fatalf("script error = %v", err)
	}
	if !strings.Contains(stdout, "run_script.sh") {
		t.Errorf("script output = %q, want the written file", stdout)
	}

	data, err := os.ReadFile(filepath.Join(out, "run_script.sh"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	want := strings.Join([]string{
		script.Banner,
		"set -e",
		"module purge",
		"module load intel",
		"",
		"export NETCDF_ROOT=/sw/netcdf",
		"cd /work",
		"srun ./echam6",
		"",
	}, "\n")
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("run_script.sh mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(out, script.DefaultHeaderName)); !os.IsNotExist(err) {
		t.Errorf("header script was not removed, stat error = %v", err)
	}
}

func TestScriptCommand_KeepsHeaderWithoutCommands(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	out := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.HeaderScript = "env_header.sh"

	_, stderr, err := execute(t, newTestApp(cfg), "script", "run", "--dir", out, "--machine", f.machine)
	if err != nil {
		t.Fatalf("script error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "env_header.sh")); err != nil {
		t.Errorf("header script missing: %v", err)
	}
	if !strings.Contains(stderr, "no --command given") {
		t.Errorf("stderr = %q, want warning", stderr)
	}
}

func TestScriptCommand_InvalidCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, _, err := execute(t, newTestApp(nil),
		"script", "run", "--dir", t.TempDir(), "--machine", f.machine, "--command", `echo "open`)
	if !errors.Is(err, script.ErrSyntax) {
		t.Errorf("script error = %v, want ErrSyntax", err)
	}
}

func TestDumpCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		format string
		want   string
	}{
		{"yaml", "NETCDF_ROOT: /sw/netcdf"},
		{"json", `"NETCDF_ROOT": "/sw/netcdf"`},
		{"toml", "NETCDF_ROOT = "},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := execute(t, newTestApp(nil), "dump", "--machine", f.machine, "--format", tt.format)
			if err != nil {
				t.Fatalf("dump error = %v", err)
			}
			if !strings.Contains(stdout, tt.want) {
				t.Errorf("dump --format %s output missing %q:\n%s", tt.format, tt.want, stdout)
			}
		})
	}
}

func TestMachineCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := config.DefaultConfig()
	cfg.MachinesDir = f.machinesDir

	stdout, _, err := execute(t, newTestApp(cfg), "machine", "albedo1")
	if err != nil {
		t.Fatalf("machine error = %v", err)
	}
	for _, want := range []string{"machine: albedo", filepath.Join(f.machinesDir, "albedo.yaml")} {
		if !strings.Contains(stdout, want) {
			t.Errorf("machine output missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	stdout, _, err := execute(t, newTestApp(nil), "validate", "--machine", f.machine, "--model-file", f.echam)
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{"✓ structure", "✓ compiletime", "✓ runtime"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("validate output missing %q:\n%s", want, stdout)
		}
	}
}

func TestValidateCommand_SchemaError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	bad := filepath.Join(f.dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: broken\nenvironment_changes: oops\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	_, _, err := execute(t, newTestApp(nil), "validate", "--machine", bad)
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.SchemaValidationFailedId {
		t.Errorf("validate error = %v, want schema validation issue", err)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.MachinesDir = "/opt/machines"
	stdout, _, err := execute(t, newTestApp(cfg), "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"machines_dir: /opt/machines", "function_path: (not set)", "header_script: dummy_script.sh", "(using defaults)"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("config show output missing %q:\n%s", want, stdout)
		}
	}
}

// syncBuffer is a bytes.Buffer safe for a writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEnvCommand_Watch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	root := NewRootCommand(newTestApp(nil))
	var stdout, stderr syncBuffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"env", "runtime", "--machine", f.machine, "--watch"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(stdout.String(), want) {
			if time.Now().After(deadline) {
				t.Fatalf("output never contained %q:\n%s\nstderr:\n%s", want, stdout.String(), stderr.String())
			}
			time.Sleep(20 * time.Millisecond)
		}
	}

	waitFor("export NETCDF_ROOT=/sw/netcdf")
	updated := strings.Replace(machineYAML, "/sw/netcdf", "/sw/netcdf-4.9", 1)
	if err := os.WriteFile(f.machine, []byte(updated), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	waitFor("export NETCDF_ROOT=/sw/netcdf-4.9")

	cancel()
	if err := <-done; err != nil {
		t.Errorf("env --watch error = %v", err)
	}
}
