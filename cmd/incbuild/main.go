// Command incbuild builds the targets of a YAML build file, running only
// the tasks whose inputs changed since the last successful run.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/version"
)

// CLI is the command line of incbuild.
type CLI struct {
	Targets      []string         `arg:"" optional:"" help:"Targets to build."`
	File         string           `short:"f" help:"Build file path." default:"build.yaml"`
	CacheDir     string           `name:"cache-dir" help:"Override the run cache directory from the build file."`
	CacheBackend string           `name:"cache-backend" help:"Override the run cache backend (fs|sqlite)."`
	ClearCache   bool             `name:"clear-cache" help:"Remove all stored data (eg file timestamps). This forces a complete rebuild."`
	ForceSingle  bool             `name:"force-single" help:"Force just the specified targets to run."`
	ForceTree    bool             `name:"force-tree" help:"Force the specified targets and all their dependencies to run."`
	ListTargets  bool             `name:"list-targets" help:"List all named targets."`
	All          bool             `help:"Build all named targets."`
	Graph        string           `help:"Print the dependency graph (text|dot) of the requested targets instead of building."`
	Watch        bool             `help:"Keep running and rebuild when tracked files change."`
	Every        time.Duration    `help:"Keep running and rebuild on this interval."`
	MetricsFile  string           `name:"metrics-file" help:"Write Prometheus metrics to this file after each build."`
	LogFormat    string           `name:"log-format" help:"Log output format." enum:"text,json" default:"text"`
	Verbose      bool             `short:"v" help:"Enable verbose logging."`
	Version      kong.VersionFlag `name:"version" help:"Show version and exit."`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	slog.SetDefault(newLogger(c.LogFormat, c.Verbose))
	return nil
}

func newLogger(format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	var root CLI
	kong.Parse(&root,
		kong.Name("incbuild"),
		kong.Description("Incremental build engine: rebuilds only what changed."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.Run(ctx, os.Stdout)
	stop()
	ferrors.NewCLIErrorAdapter(root.Verbose, slog.Default()).HandleError(err)
}
