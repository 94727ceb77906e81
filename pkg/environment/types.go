// SPDX-License-Identifier: MPL-2.0

package environment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/esm-tools/esmenv/pkg/codec"
)

const (
	// RunModeCompiletime selects compiletime_environment_changes.
	RunModeCompiletime RunMode = "compiletime"
	// RunModeRuntime selects runtime_environment_changes.
	RunModeRuntime RunMode = "runtime"
)

const (
	// AccumulatorModuleActions collects add_module_actions into module_actions.
	AccumulatorModuleActions Accumulator = iota + 1
	// AccumulatorExportVars collects add_export_vars into export_vars.
	AccumulatorExportVars
)

var (
	// ErrInvalidRunMode is the sentinel error wrapped by InvalidRunModeError.
	ErrInvalidRunMode = errors.New("invalid run mode")

	// ErrConfigMissing is the sentinel error wrapped by ConfigMissingError.
	ErrConfigMissing = errors.New("required configuration missing")

	// ErrFileLookup is the sentinel error wrapped by FileLookupError.
	ErrFileLookup = errors.New("setup file lookup failed")

	// ErrMalformedInput is returned for environment values of the wrong shape.
	ErrMalformedInput = codec.ErrMalformedInput

	// ErrInvalidFormat is the sentinel error wrapped by InvalidFormatError.
	ErrInvalidFormat = errors.New("invalid dump format")
)

type (
	// RunMode selects which run-mode specific changes a model layer applies.
	RunMode string

	// Accumulator names an append-only marker and the canonical key it feeds.
	Accumulator int

	// MalformedInputError reports a value whose shape cannot be merged.
	MalformedInputError = codec.MalformedInputError

	// InvalidRunModeError is returned for run modes other than compiletime
	// and runtime.
	InvalidRunModeError struct {
		Value RunMode
	}

	// ConfigMissingError is returned when a required section or key of the
	// composite configuration is absent.
	ConfigMissingError struct {
		// Path is the dotted location of the missing entry.
		Path   string
		Reason string
	}

	// FileLookupError is returned when the setup file of a coupled setup
	// cannot be located or fetched.
	FileLookupError struct {
		Setup   string
		Version string
		Err     error
	}

	// InvalidFormatError is returned by DumpConfig for unknown formats.
	InvalidFormatError struct {
		Value string
	}
)

// ParseRunMode converts s into a RunMode.
func ParseRunMode(s string) (RunMode, error) {
	m := RunMode(strings.ToLower(strings.TrimSpace(s)))
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}

// Validate returns an InvalidRunModeError for unknown run modes.
func (m RunMode) Validate() error {
	switch m {
	case RunModeCompiletime, RunModeRuntime:
		return nil
	default:
		return &InvalidRunModeError{Value: m}
	}
}

// String returns the run mode name.
func (m RunMode) String() string { return string(m) }

// ChangesKey returns the key holding the run-mode specific changes, e.g.
// runtime_environment_changes.
func (m RunMode) ChangesKey() string { return string(m) + "_" + environmentChangesKey }

// Accumulators returns every accumulator in processing order.
func Accumulators() []Accumulator {
	return []Accumulator{AccumulatorModuleActions, AccumulatorExportVars}
}

// MarkerKey returns the append marker, e.g. add_module_actions.
func (a Accumulator) MarkerKey() string { return "add_" + a.TargetKey() }

// TargetKey returns the canonical key the accumulator is flushed into.
func (a Accumulator) TargetKey() string {
	switch a {
	case AccumulatorModuleActions:
		return moduleActionsKey
	case AccumulatorExportVars:
		return exportVarsKey
	default:
		return ""
	}
}

// String returns the marker key.
func (a Accumulator) String() string {
	if a.TargetKey() == "" {
		return fmt.Sprintf("Accumulator(%d)", int(a))
	}
	return a.MarkerKey()
}

// Error implements the error interface.
func (e *InvalidRunModeError) Error() string {
	return fmt.Sprintf("invalid run mode %q (valid: %s, %s)", e.Value, RunModeCompiletime, RunModeRuntime)
}

// Unwrap returns ErrInvalidRunMode for errors.Is() compatibility.
func (e *InvalidRunModeError) Unwrap() error { return ErrInvalidRunMode }

// Error implements the error interface.
func (e *ConfigMissingError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing required configuration %q", e.Path)
	}
	return fmt.Sprintf("missing required configuration %q: %s", e.Path, e.Reason)
}

// Unwrap returns ErrConfigMissing for errors.Is() compatibility.
func (e *ConfigMissingError) Unwrap() error { return ErrConfigMissing }

// Error implements the error interface.
func (e *FileLookupError) Error() string {
	name := e.Setup
	if e.Version != "" {
		name += "-" + e.Version
	}
	if e.Err == nil {
		return fmt.Sprintf("setup file for %q not found", name)
	}
	return fmt.Sprintf("setup file for %q: %v", name, e.Err)
}

// Unwrap returns ErrFileLookup and the underlying cause.
func (e *FileLookupError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFileLookup}
	}
	return []error{ErrFileLookup, e.Err}
}

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid dump format %q (valid: yaml, json, toml)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }
