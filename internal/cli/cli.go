// Package cli implements the rostermap command-line interface.
//
// Every command reads its options from an optional config file
// (rostermap.toml, .yaml or .json, found in the working directory or
// named with --config) and lets flags override them.
//
// # Commands
//
//   - render: draw frames of one step at given progress values
//   - frames: export an evenly spaced frame sequence of one step
//   - steps: list the narrative steps
//   - network: draw the movement network of one step
//   - play: scrub through the narrative in the terminal
//   - serve: run the HTTP and WebSocket API
//   - config: print the effective options
//   - cache: manage the render cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/buildinfo"
	"github.com/matzehuels/rostermap/pkg/cache"
	"github.com/matzehuels/rostermap/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "rostermap"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag.
	configPath string
}

// New creates a new CLI instance logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Rostermap animates team rosters on a map",
		Long:         `Rostermap draws every team as a circle on a map, split into one cell per player sized by a metric, and animates players moving between teams step by step.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: ./rostermap.toml, .yaml or .json if present)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.framesCommand())
	root.AddCommand(c.stepsCommand())
	root.AddCommand(c.networkCommand())
	root.AddCommand(c.playCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) *pipeline.Runner {
	return pipeline.NewRunner(c.newCache(noCache), newKeyer(), c.Logger)
}

// newCache opens the per-user file cache. A cache that cannot be opened
// degrades to no caching.
func (c *CLI) newCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cache.DefaultDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cache disabled", "dir", dir, "err", err)
		return cache.NewNullCache()
	}
	return fc
}

// newKeyer scopes cache keys by version so an upgrade never serves frames
// drawn by an older renderer.
func newKeyer() cache.Keyer {
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), buildinfo.Version)
}
