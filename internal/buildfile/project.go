package buildfile

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/graph"
	"git.home.luguber.info/inful/incbuild/internal/sentinel"
	"git.home.luguber.info/inful/incbuild/internal/task"
	"git.home.luguber.info/inful/incbuild/internal/tasks"
)

// Project is a loaded build file: the graph and the named entry points into it.
type Project struct {
	Graph   *graph.Graph
	Targets map[string]task.Task
	watched map[string]struct{}
}

// Names returns the target names, sorted.
func (p *Project) Names() []string {
	names := make([]string, 0, len(p.Targets))
	for name := range p.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Watched returns every file tracked by a file sentinel and every expanded
// inputs directory, sorted.
func (p *Project) Watched() []string {
	out := make([]string, 0, len(p.watched))
	for path := range p.watched {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Project builds the dependency graph described by the file. Targets are
// created in name order; depends_on references are created on demand.
func (f *File) Project(env tasks.Env) (*Project, error) {
	c := &compiler{
		file:     f,
		env:      env,
		project:  &Project{Graph: graph.New(), Targets: map[string]task.Task{}, watched: map[string]struct{}{}},
		visiting: map[string]bool{},
	}
	for _, name := range f.Names() {
		if _, err := c.target(name); err != nil {
			return nil, err
		}
	}
	return c.project, nil
}

type compiler struct {
	file     *File
	env      tasks.Env
	project  *Project
	visiting map[string]bool
}

func (c *compiler) target(name string) (task.Task, error) {
	if t, ok := c.project.Targets[name]; ok {
		return t, nil
	}
	if c.visiting[name] {
		return nil, targetError(name, "depends_on forms a cycle")
	}
	c.visiting[name] = true
	defer delete(c.visiting, name)

	cfg := c.file.Targets[name]
	mode, err := sentinel.ParseMode(cfg.Compare)
	if err != nil {
		return nil, err
	}

	var prereqs []task.Task
	for _, dep := range cfg.DependsOn {
		t, err := c.target(dep)
		if err != nil {
			return nil, err
		}
		prereqs = append(prereqs, t)
	}
	inputs, err := c.inputs(cfg)
	if err != nil {
		return nil, err
	}

	var t task.Task
	if cfg.kindOrDefault() == graph.KindGroup {
		for _, in := range inputs {
			prereqs = append(prereqs, c.sentinel(in, mode))
		}
		t = graph.NewGroup(c.project.Graph, name, prereqs...)
	} else {
		t, err = tasks.New(cfg.Kind, c.taskConfig(name, cfg, mode), c.env)
		if err != nil {
			return nil, err
		}
		if r, ok := t.(tasks.InputReader); ok {
			inputs = append(r.Inputs(), inputs...)
		}
		files := make([]task.Task, 0, len(inputs))
		for _, in := range inputs {
			files = append(files, c.sentinel(in, mode))
		}
		c.project.Graph.Register(t, append(files, prereqs...)...)
		if f, ok := t.(*sentinel.File); ok {
			c.watch(f.Path())
		}
	}
	c.project.Targets[name] = t
	return t, nil
}

// inputs returns the resolved file inputs of cfg, with inputs_dir expanded.
func (c *compiler) inputs(cfg TargetConfig) ([]string, error) {
	var out []string
	for _, in := range cfg.Inputs {
		out = append(out, c.file.resolve(in))
	}
	if cfg.InputsDir == nil {
		return out, nil
	}
	dir := c.file.resolve(cfg.InputsDir.Path)
	listed, err := ListDir(dir, cfg.InputsDir.Suffix)
	if err != nil {
		return nil, err
	}
	c.watch(dir)
	return append(out, listed...), nil
}

func (c *compiler) sentinel(path string, mode sentinel.Mode) task.Task {
	c.watch(path)
	return sentinel.NewFile(path, mode, c.env.Values)
}

func (c *compiler) watch(path string) {
	c.project.watched[path] = struct{}{}
}

func (c *compiler) taskConfig(name string, cfg TargetConfig, mode sentinel.Mode) tasks.Config {
	dir := cfg.Dir
	if dir == "" {
		dir = c.file.dir
	}
	return tasks.Config{
		Name:    name,
		Command: cfg.Command,
		Dir:     c.file.resolve(dir),
		Src:     c.file.resolve(cfg.Src),
		Dst:     c.file.resolve(cfg.Dst),
		Input:   c.file.resolve(cfg.Input),
		Output:  c.file.resolve(cfg.Output),
		Base:    c.file.resolve(cfg.Base),
		ListDir: c.file.resolve(cfg.ListDir),
		Key:     cfg.Key,
		Path:    c.file.resolve(cfg.Path),
		Compare: mode,
	}
}

// ListDir returns the entries of dir whose names end in suffix, joined with
// dir and sorted. Subdirectories are skipped.
func ListDir(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotFound, "list inputs directory").
			WithContext("path", dir).
			Fatal().
			Build()
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
