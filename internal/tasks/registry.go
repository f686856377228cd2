package tasks

import (
	"fmt"
	"io"
	"sort"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/sentinel"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// Config holds the kind-specific settings of one target. Fields unused by
// a kind are ignored.
type Config struct {
	Name    string
	Command []string
	Dir     string
	Src     string
	Dst     string
	Input   string
	Output  string
	Base    string
	ListDir string
	Key     string
	Path    string
	Compare sentinel.Mode
}

// Env carries what factories need besides the target settings.
type Env struct {
	Values sentinel.ValueStore
	Stdout io.Writer
	Stderr io.Writer
}

// InputReader is implemented by tasks that read files named in their
// settings. Loaders add a file sentinel per input as a prerequisite.
type InputReader interface {
	Inputs() []string
}

// Factory builds a task from target settings.
type Factory func(cfg Config, env Env) (task.Task, error)

var builtins = map[string]Factory{
	KindCommand:    newCommandFromConfig,
	KindCopy:       newCopyFromConfig,
	KindPreprocess: newPreprocessFromConfig,
	KindManifest:   newManifestFromConfig,
	KindMarkdown:   newMarkdownFromConfig,
	KindGitHead:    newGitHeadFromConfig,
	sentinel.KindFile: func(cfg Config, env Env) (task.Task, error) {
		if err := requireField(cfg, "path", cfg.Path); err != nil {
			return nil, err
		}
		return sentinel.NewFile(cfg.Path, cfg.Compare, env.Values), nil
	},
}

// Kinds returns the names of every built-in kind, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(builtins))
	for k := range builtins {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Known reports whether kind names a built-in task kind.
func Known(kind string) bool {
	_, ok := builtins[kind]
	return ok
}

// New builds a task of the given kind.
func New(kind string, cfg Config, env Env) (task.Task, error) {
	factory, ok := builtins[kind]
	if !ok {
		return nil, ferrors.ConfigError(fmt.Sprintf("unknown task kind %q", kind)).
			WithContext("target", cfg.Name).
			WithContext("known", Kinds()).
			Build()
	}
	return factory(cfg, env)
}

func requireField(cfg Config, field, value string) error {
	if value != "" {
		return nil
	}
	return ferrors.ConfigError(fmt.Sprintf("target %q: %s is required", cfg.Name, field)).
		WithContext("target", cfg.Name).
		WithContext("field", field).
		Build()
}
