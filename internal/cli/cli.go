// Package cli implements the quarry command-line interface.
//
// Quarry resolves npm-style dependency ranges, installs package trees
// concurrently, and keeps a content-addressed cache of remote
// resources. Commands are built with cobra; styled output uses
// lipgloss and structured logging goes through charmbracelet/log at a
// level controlled by the --verbose flag.
//
// # Commands
//
// The main commands are:
//   - install: Resolve and install the dependencies declared in pkg.toml
//   - resolve: Resolve a single package range against the registry
//   - latest: Show the latest published version of a package
//   - fetch: Load a resource URL through the content cache
//   - cache: Inspect or purge the content cache
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/pkg/buildinfo"
	"github.com/quarryhq/quarry/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "quarry"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "quarry",
		Short:         "Quarry installs package trees and caches remote resources",
		Long:          `Quarry resolves npm-style dependency ranges against a registry, installs package trees concurrently, and loads remote resources through a content-addressed on-disk cache.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.installCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.latestCommand())
	root.AddCommand(c.fetchCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newContentCache opens the content cache at the standard location.
func newContentCache() (*cache.Cache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return cache.New(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/quarry/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
