package tasks

import (
	"context"
	"encoding/json"
	"os"
	"sort"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindManifest writes a JSON listing of a directory.
const KindManifest = "manifest"

// DefaultManifestKey is the JSON key used when none is configured.
const DefaultManifestKey = "entries"

// Manifest writes {"<key>": [names...]} for the entries of a directory,
// sorted by name.
type Manifest struct {
	name    string
	listDir string
	key     string
	output  string
}

// NewManifest creates a manifest task.
func NewManifest(name, listDir, key, output string) *Manifest {
	if key == "" {
		key = DefaultManifestKey
	}
	return &Manifest{name: name, listDir: listDir, key: key, output: output}
}

func newManifestFromConfig(cfg Config, _ Env) (task.Task, error) {
	if err := requireField(cfg, "list_dir", cfg.ListDir); err != nil {
		return nil, err
	}
	if err := requireField(cfg, "output", cfg.Output); err != nil {
		return nil, err
	}
	return NewManifest(cfg.Name, cfg.ListDir, cfg.Key, cfg.Output), nil
}

func (m *Manifest) Descriptor() task.Descriptor {
	return task.Descriptor{
		Kind:   KindManifest,
		Name:   m.name,
		Params: map[string]string{"list_dir": m.listDir, "key": m.key, "output": m.output},
	}
}

func (m *Manifest) Run(context.Context) (bool, error) {
	entries, err := os.ReadDir(m.listDir)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "list manifest directory").
			WithContext("path", m.listDir).
			Build()
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	data, err := json.Marshal(map[string][]string{m.key: names})
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryInternal, "encode manifest").Build()
	}
	if err := writeOutput(m.output, data); err != nil {
		return false, err
	}
	return true, nil
}
