// SPDX-License-Identifier: MPL-2.0

//go:build integration

package script

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

// checkTestcontainersAvailable reports whether a container provider can be
// reached. The provider lookup may panic without an engine.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestMaterializer_SourceInBash sources a generated script in a real bash to
// check that rendered statements behave like the preview says.
func TestMaterializer_SourceInBash(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping integration test: container engine not available")
	}

	commands := []string{
		"module load gcc",
		"",
		"export NETCDF_ROOT=/sw/netcdf",
		"export PATH=$NETCDF_ROOT/bin:$PATH",
		"export CFG='{a: b}'",
	}

	m := &Materializer{Dir: t.TempDir()}
	if err := m.WriteHeader(commands, true); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	name, err := m.Append([]string{"echo \"CFG=$CFG\""}, "run")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "debian:stable-slim",
			Cmd:   []string{"sleep", "300"},
			Files: []testcontainers.ContainerFile{{
				HostFilePath:      m.ScriptPath("run"),
				ContainerFilePath: "/scripts/" + name,
				FileMode:          0o755,
			}},
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start container: %v", err)
	}
	defer func() { _ = c.Terminate(context.Background()) }() // Best-effort cleanup

	check := `module() { echo "module $*"; }; source /scripts/` + name + `; echo "PATH=$PATH"`
	code, reader, err := c.Exec(ctx, []string{"bash", "-c", check}, tcexec.Multiplexed())
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading exec output: %v", err)
	}
	if code != 0 {
		t.Fatalf("bash exit code = %d, output:\n%s", code, out)
	}

	for _, want := range []string{"module load gcc", "CFG={a: b}", "PATH=/sw/netcdf/bin:"} {
		if !strings.Contains(string(out), want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
