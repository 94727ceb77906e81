// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// LogLevelDebug logs loader and resolver decisions.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only errors.
	LogLevelError LogLevel = "error"

	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultHeaderScript is the header script written next to generated scripts.
	DefaultHeaderScript = "dummy_script.sh"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidHeaderScript is returned when header_script is not a plain file name.
	ErrInvalidHeaderScript = errors.New("invalid header script name")
)

type (
	// LogLevel is the minimum level of log output.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// ColorScheme selects the style used for rendered issue pages.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// Config is the esmenv application configuration.
	Config struct {
		// MachinesDir contains all_machines.yaml and the machine files.
		MachinesDir string `json:"machines_dir" mapstructure:"machines_dir"`
		// FunctionPath is the root below which setup files are looked up.
		FunctionPath string `json:"function_path" mapstructure:"function_path"`
		// HeaderScript is the file name of the header script.
		HeaderScript string `json:"header_script" mapstructure:"header_script"`
		// SetE writes set -e into generated scripts.
		SetE bool `json:"set_e" mapstructure:"set_e"`
		// Provenance exports ENVIRONMENT_SET_BY_ESMTOOLS=TRUE.
		Provenance bool `json:"provenance" mapstructure:"provenance"`
		// LogLevel is the minimum level of log output.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
		// UI contains user interface settings.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// UIConfig contains user interface settings.
	UIConfig struct {
		// ColorScheme sets the color scheme ("auto", "dark", "light").
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables verbose error output.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error {
	return ErrInvalidLogLevel
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Validate checks the values CUE cannot constrain after environment overrides
// have been applied.
func (c *Config) Validate() error {
	var errs []error
	if _, lErrs := c.LogLevel.IsValid(); len(lErrs) > 0 {
		errs = append(errs, lErrs...)
	}
	if _, csErrs := c.UI.ColorScheme.IsValid(); len(csErrs) > 0 {
		errs = append(errs, csErrs...)
	}
	if name := c.HeaderScript; strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\`) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidHeaderScript, name))
	}
	return errors.Join(errs...)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		HeaderScript: DefaultHeaderScript,
		SetE:         false,
		Provenance:   false,
		LogLevel:     LogLevelInfo,
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
