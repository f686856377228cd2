package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"git.home.luguber.info/inful/incbuild/internal/buildfile"
	"git.home.luguber.info/inful/incbuild/internal/cli"
	"git.home.luguber.info/inful/incbuild/internal/engine"
	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/graph"
	"git.home.luguber.info/inful/incbuild/internal/logfields"
	"git.home.luguber.info/inful/incbuild/internal/metrics"
	"git.home.luguber.info/inful/incbuild/internal/runcache"
	"git.home.luguber.info/inful/incbuild/internal/storage"
	"git.home.luguber.info/inful/incbuild/internal/task"
	"git.home.luguber.info/inful/incbuild/internal/tasks"
	"git.home.luguber.info/inful/incbuild/internal/watch"
)

// Run executes the command line. Front-end messages go to out.
func (c *CLI) Run(ctx context.Context, out io.Writer) error {
	if c.Watch && c.Every > 0 {
		return ferrors.ConfigError("--watch and --every cannot be combined").Build()
	}

	file, err := buildfile.Load(c.File)
	if err != nil {
		return err
	}
	store, err := c.openStore(file)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Failed to close run cache", logfields.Error(cerr))
		}
	}()

	b := &builder{
		buildFile: c.File,
		cache:     runcache.New(store),
		out:       out,
		logger:    slog.Default(),
		recorder:  metrics.NoopRecorder{},
	}
	if c.MetricsFile != "" {
		b.prom = metrics.NewPrometheusRecorder(nil)
		b.recorder = b.prom
		b.metricsFile = c.MetricsFile
	}

	project, err := file.Project(b.env())
	if err != nil {
		return err
	}
	if c.Graph != "" {
		return c.renderGraph(out, project)
	}

	req := cli.Request{
		Names:       c.Targets,
		All:         c.All,
		ClearCache:  c.ClearCache,
		ForceSingle: c.ForceSingle,
		ForceTree:   c.ForceTree,
		ListTargets: c.ListTargets,
	}
	if err := b.build(ctx, project, req); err != nil {
		return err
	}
	if !c.Watch && c.Every == 0 {
		return nil
	}

	// Later rounds reload the build file so that new inputs are picked up.
	req.ClearCache = false
	req.ListTargets = false
	var w *watch.Watcher
	rebuild := func(ctx context.Context) error {
		p, err := b.reload()
		if err != nil {
			return err
		}
		if w != nil {
			if err := w.Add(p.Watched()...); err != nil {
				b.logger.Warn("Failed to watch new inputs", logfields.Error(err))
			}
		}
		return b.build(ctx, p, req)
	}
	if c.Watch {
		paths := append(project.Watched(), c.File)
		w, err = watch.NewWatcher(paths, rebuild, watch.WithLogger(b.logger))
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryRuntime, "start watch mode").Build()
		}
		return w.Run(ctx)
	}
	p, err := watch.NewPeriodic(c.Every, rebuild, b.logger)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "start periodic mode").Build()
	}
	return p.Run(ctx)
}

func (c *CLI) openStore(file *buildfile.File) (storage.Store, error) {
	dir := file.CacheDir()
	if c.CacheDir != "" {
		dir = c.CacheDir
	}
	backend := file.Cache.Backend
	if c.CacheBackend != "" {
		backend = storage.Backend(c.CacheBackend)
	}
	store, err := storage.Open(backend, dir)
	if err != nil {
		var unknown storage.ErrUnknownBackend
		if errors.As(err, &unknown) {
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "open run cache").Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryCache, "open run cache").
			WithContext("path", dir).
			Build()
	}
	slog.Debug("Run cache opened", logfields.Path(dir), slog.String("backend", string(backend)))
	return store, nil
}

func (c *CLI) renderGraph(out io.Writer, project *buildfile.Project) error {
	format, err := graph.ParseFormat(c.Graph)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid --graph").Build()
	}
	names := c.Targets
	if c.All || len(names) == 0 {
		names = project.Names()
	}
	roots := make([]task.Task, 0, len(names))
	for _, name := range names {
		t, ok := project.Targets[name]
		if !ok {
			return ferrors.NotFoundError(fmt.Sprintf("unknown target %q", name)).
				WithContext("target", name).
				Build()
		}
		roots = append(roots, t)
	}
	if len(roots) == 0 {
		return nil
	}
	return project.Graph.Render(out, format, roots...)
}

// builder runs build rounds against one open run cache.
type builder struct {
	buildFile   string
	cache       *runcache.Cache
	out         io.Writer
	logger      *slog.Logger
	recorder    metrics.Recorder
	prom        *metrics.PrometheusRecorder
	metricsFile string
}

func (b *builder) env() tasks.Env {
	return tasks.Env{Values: b.cache}
}

func (b *builder) reload() (*buildfile.Project, error) {
	file, err := buildfile.Load(b.buildFile)
	if err != nil {
		return nil, err
	}
	return file.Project(b.env())
}

func (b *builder) build(ctx context.Context, project *buildfile.Project, req cli.Request) error {
	runner := &cli.Runner{
		Targets: project.Targets,
		Cache:   b.cache,
		NewSession: func() *engine.Session {
			return engine.NewSession(project.Graph, b.cache,
				engine.WithLogger(b.logger),
				engine.WithRecorder(b.recorder))
		},
		Out:    b.out,
		Logger: b.logger,
	}
	resp, err := runner.Run(ctx, req)
	if resp != nil && resp.Report.InvocationID != "" {
		r := resp.Report
		b.logger.Info("Build finished",
			logfields.InvocationID(r.InvocationID),
			slog.Int("executed", r.Executed),
			slog.Int("skipped", r.Skipped),
			slog.Int("failed", r.Failed),
			logfields.Duration(r.Elapsed))
	}
	b.writeMetrics()
	return err
}

func (b *builder) writeMetrics() {
	if b.prom == nil {
		return
	}
	path, err := filepath.Abs(b.metricsFile)
	if err == nil {
		err = b.prom.WriteTextfile(path)
	}
	if err != nil {
		b.logger.Warn("Failed to write metrics file", logfields.Path(b.metricsFile), logfields.Error(err))
	}
}
