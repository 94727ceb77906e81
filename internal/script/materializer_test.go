// SPDX-License-Identifier: MPL-2.0

package script

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return string(data)
}

func TestMaterializer_WriteHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		commands    []string
		includeSetE bool
		want        string
	}{
		{
			name:     "commands",
			commands: []string{"module load gcc", "", "export A=1"},
			want:     Banner + "\nmodule load gcc\n\nexport A=1\n",
		},
		{
			name:        "set -e",
			commands:    []string{"module purge"},
			includeSetE: true,
			want:        Banner + "\nset -e\nmodule purge\n",
		},
		{
			name: "no commands",
			want: Banner + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := &Materializer{Dir: t.TempDir()}
			if err := m.WriteHeader(tt.commands, tt.includeSetE); err != nil {
				t.Fatalf("WriteHeader() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, readFile(t, m.HeaderPath())); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMaterializer_WriteHeaderReplaces(t *testing.T) {
	t.Parallel()

	m := &Materializer{Dir: t.TempDir()}
	if err := m.WriteHeader([]string{"export OLD=1"}, false); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := m.WriteHeader([]string{"export NEW=1"}, false); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if got, want := readFile(t, m.HeaderPath()), Banner+"\nexport NEW=1\n"; got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
}

func TestMaterializer_HeaderName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := &Materializer{Dir: dir, HeaderName: "env_header.sh"}
	if got, want := m.HeaderPath(), filepath.Join(dir, "env_header.sh"); got != want {
		t.Errorf("HeaderPath() = %q, want %q", got, want)
	}
	if got, want := (&Materializer{}).HeaderPath(), DefaultHeaderName; got != want {
		t.Errorf("HeaderPath() = %q, want %q", got, want)
	}
}

func TestMaterializer_Append(t *testing.T) {
	t.Parallel()

	m := &Materializer{Dir: t.TempDir()}
	if err := m.WriteHeader([]string{"module load netcdf"}, true); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}

	got, err := m.Append([]string{"cd /work", "make -j8"}, "comp")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got != "comp_script.sh" {
		t.Errorf("Append() = %q, want %q", got, "comp_script.sh")
	}

	want := Banner + "\nset -e\nmodule load netcdf\ncd /work\nmake -j8\n"
	if diff := cmp.Diff(want, readFile(t, m.ScriptPath("comp"))); diff != "" {
		t.Errorf("script mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(m.ScriptPath("comp"))
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("script mode = %v, want executable", info.Mode())
	}
}

func TestMaterializer_AppendEmpty(t *testing.T) {
	t.Parallel()

	m := &Materializer{Dir: t.TempDir()}
	got, err := m.Append(nil, "comp")
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if got != "comp" {
		t.Errorf("Append() = %q, want %q", got, "comp")
	}
	if _, err := os.Stat(m.ScriptPath("comp")); !os.IsNotExist(err) {
		t.Errorf("Append() with no commands created a script, stat error = %v", err)
	}
}

func TestMaterializer_AppendErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		m := &Materializer{Dir: t.TempDir()}
		if _, err := m.Append([]string{"make"}, "comp"); err == nil {
			t.Error("Append() without header succeeded, want error")
		}
	})

	t.Run("invalid name", func(t *testing.T) {
		t.Parallel()

		m := &Materializer{Dir: t.TempDir()}
		if err := m.WriteHeader(nil, false); err != nil {
			t.Fatalf("WriteHeader() error = %v", err)
		}
		if _, err := m.Append([]string{"make"}, filepath.Join("sub", "comp")); err == nil {
			t.Error("Append() with a path name succeeded, want error")
		}
	})
}

func TestMaterializer_Cleanup(t *testing.T) {
	t.Parallel()

	m := &Materializer{Dir: t.TempDir()}
	if err := m.WriteHeader([]string{"export A=1"}, false); err != nil {
		t.Fatalf("WriteHeader() error = %v", err)
	}
	if err := m.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if _, err := os.Stat(m.HeaderPath()); !os.IsNotExist(err) {
		t.Errorf("header still present after Cleanup(), stat error = %v", err)
	}
	if err := m.Cleanup(); err != nil {
		t.Errorf("second Cleanup() error = %v, want nil", err)
	}
}

func TestWriteFile_ReplacesLeftoverTemporary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "run_script.sh")
	if err := os.WriteFile(path+".tmp", []byte("stale\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := writeFile(path, []byte("module purge\n")); err != nil {
		t.Fatalf("writeFile() error = %v", err)
	}
	if got := readFile(t, path); got != "module purge\n" {
		t.Errorf("content = %q, want %q", got, "module purge\n")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("mode = %v, want executable", info.Mode())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind, stat error = %v", err)
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "run_script.sh")
	if err := writeFile(path, []byte("x\n")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("writeFile() error = %v, want fs.ErrNotExist", err)
	}
}
