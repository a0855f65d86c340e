// Package cli wires the ethics review commands onto the container.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/config"
	"github.com/garyjia/ethics-review/internal/container"
	httpif "github.com/garyjia/ethics-review/internal/interfaces/http"
	"github.com/garyjia/ethics-review/pkg/utils"
)

// Version is set at build time
var Version = "dev"

// App holds state shared by all commands
type App struct {
	ConfigPath string
}

// NewRootCommand builds the command tree
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "ethics-review",
		Short:         "Research ethics approval workflow engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", os.Getenv("ETHICS_CONFIG"),
		"path to the YAML config file (defaults and ETHICS_* environment when empty)")

	root.AddCommand(
		newServeCommand(app),
		newSweepCommand(app),
		newTemplateCommand(app),
		newReportCommand(app),
		newUserCommand(app),
		newApplicationCommand(app),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	cmd := NewRootCommand(&App{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// load reads configuration and builds the logger
func (a *App) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	httpif.Version = Version
	return cfg, logger, nil
}

// withContainer runs fn against a started container without background
// workers, for one-shot commands
func (a *App) withContainer(ctx context.Context, fn func(c *container.Container) error) error {
	cfg, logger, err := a.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cc := cfg.ToContainerConfig()
	cc.Sweeper.Enabled = false

	c, err := container.NewContainer(cc, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return err
	}
	defer func() { _ = c.Close() }()

	return fn(c)
}

// printJSON writes v as indented JSON to the command's output
func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
