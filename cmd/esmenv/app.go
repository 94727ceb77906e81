// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/esm-tools/esmenv/internal/config"
)

type (
	// ConfigProvider loads the application configuration.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// App wires CLI services and global flag state. All command constructors
	// receive the App.
	App struct {
		Config  ConfigProvider
		Environ func() []string

		verbose bool
		cfgFile string
		// cfg is the last loaded configuration, used by the error handler.
		cfg *config.Config
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config ConfigProvider
		// Environ seeds the preview interpreter; defaults to os.Environ.
		Environ func() []string
	}

	// session is the per-invocation state shared by a command's helpers.
	session struct {
		app     *App
		cfg     *config.Config
		cfgPath string
		logger  *log.Logger
		stdout  io.Writer
		stderr  io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}
	return &App{Config: deps.Config, Environ: deps.Environ}
}

// newSession loads the configuration and builds the logger for cmd.
func (a *App) newSession(cmd *cobra.Command) (*session, error) {
	cfg, path, err := a.Config.Load(cmd.Context(), config.LoadOptions{ConfigFilePath: a.cfgFile})
	if err != nil {
		return nil, err
	}
	a.cfg = cfg

	level, err := log.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		level = log.InfoLevel
	}
	if a.verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix: "esmenv",
		Level:  level,
	})
	logger.Debug("configuration loaded", "path", path)

	return &session{
		app:     a,
		cfg:     cfg,
		cfgPath: path,
		logger:  logger,
		stdout:  cmd.OutOrStdout(),
		stderr:  cmd.ErrOrStderr(),
	}, nil
}

// isVerbose reports whether verbose error output is enabled by flag or
// configuration.
func (a *App) isVerbose() bool {
	return a.verbose || (a.cfg != nil && a.cfg.UI.Verbose)
}

// glamourStyle maps the configured color scheme to a glamour style name.
func (a *App) glamourStyle() string {
	if a.cfg == nil {
		return "auto"
	}
	switch a.cfg.UI.ColorScheme {
	case config.ColorSchemeDark:
		return "dark"
	case config.ColorSchemeLight:
		return "light"
	default:
		return "auto"
	}
}
