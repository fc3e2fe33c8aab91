// Package command implements the ui5project command line interface.
package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	ui5project "github.com/albertocavalcante/go-ui5project"
	"github.com/albertocavalcante/go-ui5project/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// cli holds the global flags shared by all commands.
type cli struct {
	logLevel   string
	verbose    bool
	configFile string
}

// NewRootCommand creates the root command with all subcommands.
func NewRootCommand() *cobra.Command {
	c := &cli{}
	cmd := &cobra.Command{
		Use:   "ui5project",
		Short: "Inspect the dependency graph of UI5 projects",
		Long: `ui5project resolves the dependencies of a UI5 project into a project graph.

Dependencies are read from the npm dependencies of the project or from a
static dependency definition. OpenUI5 and SAPUI5 libraries referenced in the
framework configuration of the projects are downloaded from the npm registry
and added to the graph.

Examples:
  ui5project tree                      Print the graph of the project in the working directory
  ui5project tree --format dot         Print the graph in Graphviz format
  ui5project versions SAPUI5           List the available SAPUI5 versions
  ui5project config set ui5DataDir ~/.cache/ui5`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "log level: debug, info, warn, error or silent")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose output (same as --log-level debug)")
	cmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default is $HOME/.ui5rc)")

	cmd.AddCommand(
		newTreeCommand(c),
		newVersionsCommand(c),
		newConfigCommand(c),
	)
	return cmd
}

// Execute runs the root command and exits with a non-zero code on failure.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

func versionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// logger renders library logs on w through charmbracelet/log.
func (c *cli) logger(w io.Writer) (*slog.Logger, error) {
	level := strings.ToLower(c.logLevel)
	if c.verbose {
		level = "debug"
	}
	if level == "silent" {
		return slog.New(slog.DiscardHandler), nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.logLevel, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "ui5project",
		Level:  lvl,
	})
	return slog.New(handler), nil
}

func (c *cli) loadConfig(ctx context.Context) (*config.Config, error) {
	return config.Load(ctx, config.LoadOptions{ConfigFile: c.configFile})
}

// frameworkOptions returns the library options for installing framework
// packages as configured.
func (c *cli) frameworkOptions(ctx context.Context) ([]ui5project.Option, error) {
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	return []ui5project.Option{
		ui5project.WithUI5DataDir(cfg.UI5DataDir),
		ui5project.WithRegistry(cfg.Registry),
		ui5project.WithTimeout(cfg.Timeout),
		ui5project.WithConcurrency(cfg.Concurrency),
	}, nil
}
