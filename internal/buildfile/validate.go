package buildfile

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/graph"
	"git.home.luguber.info/inful/incbuild/internal/sentinel"
	"git.home.luguber.info/inful/incbuild/internal/storage"
	"git.home.luguber.info/inful/incbuild/internal/tasks"
)

func (f *File) validate() error {
	switch f.Cache.Backend {
	case storage.BackendFS, storage.BackendSQLite:
	default:
		return ferrors.ConfigError(fmt.Sprintf("unknown cache backend %q", f.Cache.Backend)).
			WithContext("field", "cache.backend").
			Build()
	}

	for _, name := range f.Names() {
		if err := f.validateTarget(name, f.Targets[name]); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) validateTarget(name string, t TargetConfig) error {
	kind := t.kindOrDefault()
	if kind != graph.KindGroup && !tasks.Known(kind) {
		return targetError(name, fmt.Sprintf("unknown kind %q", kind))
	}
	if _, err := sentinel.ParseMode(t.Compare); err != nil {
		return targetError(name, fmt.Sprintf("unknown compare mode %q", t.Compare))
	}
	if t.InputsDir != nil && t.InputsDir.Path == "" {
		return targetError(name, "inputs_dir.path is required")
	}
	for _, dep := range t.DependsOn {
		if _, ok := f.Targets[dep]; !ok {
			return targetError(name, fmt.Sprintf("depends_on names unknown target %q", dep))
		}
	}
	return nil
}

func (t TargetConfig) kindOrDefault() string {
	if t.Kind == "" {
		return graph.KindGroup
	}
	return t.Kind
}

func targetError(name, msg string) error {
	return ferrors.ConfigError(fmt.Sprintf("target %q: %s", name, msg)).
		WithContext("target", name).
		Build()
}
