// SPDX-License-Identifier: MPL-2.0

package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/esm-tools/esmenv/pkg/cueutil"
	"github.com/esm-tools/esmenv/pkg/tree"
)

var (
	// ErrSetupNotFound is the sentinel error wrapped by SetupNotFoundError.
	ErrSetupNotFound = errors.New("setup file not found")

	// ErrMachineNotDetected is the sentinel error wrapped by MachineNotDetectedError.
	ErrMachineNotDetected = errors.New("machine not detected")

	// ErrMachinesDirUnset is returned by DetectMachine when no machines
	// directory is configured.
	ErrMachinesDirUnset = errors.New("machines directory is not configured")

	// ErrChooseNotConverged is returned when choose_ blocks keep producing new
	// choose_ blocks.
	ErrChooseNotConverged = errors.New("choose blocks did not converge")

	// ErrVariableCycle is returned when ${...} references keep expanding.
	ErrVariableCycle = errors.New("variable references did not converge")

	// ErrInvalidChooseBlock is the sentinel error wrapped by ChooseBlockError.
	ErrInvalidChooseBlock = errors.New("invalid choose block")
)

type (
	// Loader loads and prepares configuration trees. The zero value is not
	// usable; create instances with New.
	Loader struct {
		machinesDir  string
		functionPath string
		setups       map[string]*tree.Mapping
		logger       *log.Logger
	}

	// Option configures a Loader.
	Option func(*Loader)

	// SetupNotFoundError is returned when no setup file matches a lookup.
	SetupNotFoundError struct {
		Name        string
		NameVersion string
		Candidates  []string
	}

	// MachineNotDetectedError is returned when no entry of all_machines.yaml
	// matches the hostname.
	MachineNotDetectedError struct {
		Hostname string
		Index    string
	}

	// ChooseBlockError is returned for choose_ blocks that cannot be evaluated.
	ChooseBlockError struct {
		Path   tree.Path
		Reason string
	}
)

// Error implements the error interface.
func (e *SetupNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("setup file for %q not found: no function path configured", e.Name)
	}
	return fmt.Sprintf("setup file for %q not found (looked for %s)", e.Name, joinQuoted(e.Candidates))
}

// Unwrap returns ErrSetupNotFound for errors.Is() compatibility.
func (e *SetupNotFoundError) Unwrap() error { return ErrSetupNotFound }

// Error implements the error interface.
func (e *MachineNotDetectedError) Error() string {
	return fmt.Sprintf("hostname %q matches no machine in %s", e.Hostname, e.Index)
}

// Unwrap returns ErrMachineNotDetected for errors.Is() compatibility.
func (e *MachineNotDetectedError) Unwrap() error { return ErrMachineNotDetected }

// Error implements the error interface.
func (e *ChooseBlockError) Error() string {
	return fmt.Sprintf("choose block %s: %s", e.Path, e.Reason)
}

// Unwrap returns ErrInvalidChooseBlock for errors.Is() compatibility.
func (e *ChooseBlockError) Unwrap() error { return ErrInvalidChooseBlock }

// WithMachinesDir sets the directory holding all_machines.yaml and the
// per-machine files.
func WithMachinesDir(dir string) Option {
	return func(l *Loader) { l.machinesDir = dir }
}

// WithFunctionPath sets the root of the component configuration files that
// setup lookups search.
func WithFunctionPath(dir string) Option {
	return func(l *Loader) { l.functionPath = dir }
}

// WithSetup registers an in-memory setup configuration under name. Lookups
// for name (or a versioned name) resolve to it without touching the disk.
func WithSetup(name string, cfg *tree.Mapping) Option {
	return func(l *Loader) { l.setups[name] = cfg.Clone() }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		setups: make(map[string]*tree.Mapping),
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MachinesDir returns the configured machines directory.
func (l *Loader) MachinesDir() string { return l.machinesDir }

// FunctionPath returns the configured function path.
func (l *Loader) FunctionPath() string { return l.functionPath }

// LoadConfig reads a YAML file into an ordered tree. The document root must be
// a mapping.
func (l *Loader) LoadConfig(path string) (*tree.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, err
	}
	cfg, err := tree.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Debug("loaded config", "path", path, "keys", cfg.Len())
	return cfg, nil
}

// Preloaded returns a copy of the in-memory setup registered under name.
func (l *Loader) Preloaded(name string) (*tree.Mapping, bool) {
	cfg, ok := l.setups[name]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = strconv.Quote(s)
	}
	return strings.Join(quoted, ", ")
}
