// SPDX-License-Identifier: MPL-2.0

package script

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultHeaderName is the file name of the header script.
	DefaultHeaderName = "dummy_script.sh"

	// Banner is the first line of every header script.
	Banner = "# Dummy script generated by esm-tools, to be removed later: "

	// SetE is the directive written when the header should stop on the first
	// failing command.
	SetE = "set -e"

	scriptSuffix = "_script.sh"
	scriptMode   = 0o755
)

// Materializer writes rendered environment commands to script files in Dir.
//
// The header script is the only shared resource. Callers that materialize
// concurrently must use distinct directories.
type Materializer struct {
	// Dir is the directory scripts are written to. Empty means the current
	// working directory.
	Dir string
	// HeaderName overrides DefaultHeaderName.
	HeaderName string
}

// HeaderPath returns the path of the header script.
func (m *Materializer) HeaderPath() string {
	name := m.HeaderName
	if name == "" {
		name = DefaultHeaderName
	}
	return filepath.Join(m.Dir, name)
}

// ScriptPath returns the path of the script Append writes for name.
func (m *Materializer) ScriptPath(name string) string {
	return filepath.Join(m.Dir, name+scriptSuffix)
}

// WriteHeader writes the banner, the optional set -e directive and one line
// per command to the header script, replacing any previous content.
func (m *Materializer) WriteHeader(commands []string, includeSetE bool) error {
	var buf bytes.Buffer
	buf.WriteString(Banner)
	buf.WriteByte('\n')
	if includeSetE {
		buf.WriteString(SetE)
		buf.WriteByte('\n')
	}
	writeLines(&buf, commands)

	if err := writeFile(m.HeaderPath(), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write header script: %w", err)
	}
	return nil
}

// Append copies the header script into <name>_script.sh and appends
// commands. It returns the file name of the new script. When commands is
// empty nothing is written and name is returned unchanged.
func (m *Materializer) Append(commands []string, name string) (string, error) {
	if len(commands) == 0 {
		return name, nil
	}
	if name == "" || strings.ContainsRune(name, filepath.Separator) {
		return "", fmt.Errorf("invalid script name %q", name)
	}

	header, err := os.ReadFile(m.HeaderPath())
	if err != nil {
		return "", fmt.Errorf("failed to read header script: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(header)
	writeLines(&buf, commands)

	target := m.ScriptPath(name)
	if err := writeFile(target, buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filepath.Base(target), err)
	}
	return filepath.Base(target), nil
}

// Cleanup removes the header script. A missing file is not an error.
func (m *Materializer) Cleanup() error {
	err := os.Remove(m.HeaderPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove header script: %w", err)
	}
	return nil
}

func writeLines(buf *bytes.Buffer, lines []string) {
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
}

// writeFile writes data to path atomically using temp file + rename, so a
// reader never sees a partially written script.
func writeFile(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, scriptMode); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	// WriteFile keeps the mode of a leftover temporary file.
	if err := os.Chmod(tmpPath, scriptMode); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to set script mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath) // Best-effort cleanup
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
