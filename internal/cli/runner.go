// Package cli turns a command line request into build session calls.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"git.home.luguber.info/inful/incbuild/internal/engine"
	"git.home.luguber.info/inful/incbuild/internal/logfields"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// Clearer wipes persisted run outcomes.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Request is one invocation of the front-end.
type Request struct {
	Names       []string
	All         bool
	ClearCache  bool
	ForceSingle bool
	ForceTree   bool
	ListTargets bool
}

// Response describes what a Run did.
type Response struct {
	Built   []string
	Changed map[string]bool
	Unknown []string
	Cleared bool
	Listed  bool
	Report  engine.Report
}

// Runner maps target names to tasks and builds them in one session.
type Runner struct {
	Targets    map[string]task.Task
	Cache      Clearer
	NewSession func() *engine.Session
	Out        io.Writer
	Logger     *slog.Logger
}

// Names returns the target names, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.Targets))
	for name := range r.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes req. Unknown names are reported and skipped. When nothing
// was cleared or built, or when asked to, the valid target names are
// listed. A task failure aborts the run and is returned.
func (r *Runner) Run(ctx context.Context, req Request) (*Response, error) {
	out := r.out()
	logger := r.logger()
	resp := &Response{Changed: map[string]bool{}}
	acted := false

	if req.ClearCache {
		fmt.Fprintln(out, "Clearing Cache")
		if err := r.Cache.Clear(ctx); err != nil {
			return resp, err
		}
		resp.Cleared = true
		acted = true
	}

	names := req.Names
	if req.All {
		names = r.Names()
	}
	var session *engine.Session
	for _, name := range names {
		t, ok := r.Targets[name]
		if !ok {
			fmt.Fprintf(out, "Unknown target: %s\n\n", name)
			logger.Warn("Unknown target", logfields.Target(name))
			resp.Unknown = append(resp.Unknown, name)
			continue
		}
		if session == nil {
			session = r.NewSession()
		}
		changed, err := session.Build(ctx, t, engine.Options{ForceSingle: req.ForceSingle, ForceTree: req.ForceTree})
		resp.Report = session.Report()
		if err != nil {
			return resp, err
		}
		logger.Debug("Target built", logfields.Target(name), logfields.Changed(changed))
		resp.Built = append(resp.Built, name)
		resp.Changed[name] = changed
		acted = true
	}

	if req.ListTargets || !acted {
		fmt.Fprintln(out, "Valid targets are:")
		for _, name := range r.Names() {
			fmt.Fprintf(out, " -  %s\n", name)
		}
		resp.Listed = true
	}
	fmt.Fprintln(out, "Done")
	return resp, nil
}

func (r *Runner) out() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
