// Package buildfile loads YAML build files.
//
// A build file names targets and says how to build them. Loading it yields
// a dependency graph and the mapping from target names to tasks that the
// command line front-end works from.
package buildfile

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/logfields"
	"git.home.luguber.info/inful/incbuild/internal/storage"
)

const (
	// DefaultFileName is the build file looked up when none is given.
	DefaultFileName = "build.yaml"
	// DefaultCacheDir is the run cache directory, relative to the build file.
	DefaultCacheDir = ".cachedir"
)

// envFiles are loaded, when present, from the build file's directory.
// Earlier files win; none overrides the process environment.
var envFiles = []string{".env.local", ".env"}

// File is a parsed build file.
type File struct {
	Cache   CacheConfig             `yaml:"cache"`
	Targets map[string]TargetConfig `yaml:"targets"`

	dir string
}

// CacheConfig locates the run cache.
type CacheConfig struct {
	Dir     string          `yaml:"dir"`
	Backend storage.Backend `yaml:"backend"`
}

// InputsDir expands to one file input per directory entry with Suffix.
type InputsDir struct {
	Path   string `yaml:"path"`
	Suffix string `yaml:"suffix"`
}

// TargetConfig describes one named target.
type TargetConfig struct {
	Kind      string     `yaml:"kind"`
	Compare   string     `yaml:"compare"`
	Inputs    []string   `yaml:"inputs"`
	InputsDir *InputsDir `yaml:"inputs_dir"`
	DependsOn []string   `yaml:"depends_on"`

	Command []string `yaml:"command"`
	Dir     string   `yaml:"dir"`
	Src     string   `yaml:"src"`
	Dst     string   `yaml:"dst"`
	Input   string   `yaml:"input"`
	Output  string   `yaml:"output"`
	Base    string   `yaml:"base"`
	ListDir string   `yaml:"list_dir"`
	Key     string   `yaml:"key"`
	Path    string   `yaml:"path"`
}

// Load reads the build file at path. Environment files next to it are
// loaded first so that ${VAR} references can use them.
func Load(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve build file path: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := loadEnvFiles(dir); err != nil {
		return nil, err
	}

	// #nosec G304 - path is the user-selected build file
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.NotFoundError("build file not found").
				WithContext("path", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read build file").
			WithContext("path", path).
			Build()
	}
	return Parse(data, dir)
}

// Parse decodes build file contents. Relative paths in the file are
// resolved against dir.
func Parse(data []byte, dir string) (*File, error) {
	expanded := os.ExpandEnv(string(data))

	var f File
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "decode build file").Build()
	}
	f.dir = dir
	f.applyDefaults()
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func loadEnvFiles(dir string) error {
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "load environment file").
				WithContext("path", path).
				Build()
		}
		slog.Debug("Loaded environment file", logfields.Path(path))
	}
	return nil
}

func (f *File) applyDefaults() {
	if f.Cache.Dir == "" {
		f.Cache.Dir = DefaultCacheDir
	}
	if f.Cache.Backend == "" {
		f.Cache.Backend = storage.BackendFS
	}
	if f.Targets == nil {
		f.Targets = map[string]TargetConfig{}
	}
}

// Dir returns the directory relative paths are resolved against.
func (f *File) Dir() string { return f.dir }

// CacheDir returns the resolved run cache directory.
func (f *File) CacheDir() string { return f.resolve(f.Cache.Dir) }

// Names returns every target name, sorted.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Targets))
	for name := range f.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *File) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(f.dir, path)
}
