package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindPreprocess inlines include directives in a text file.
const KindPreprocess = "preprocess"

const (
	includeOpen  = `#include "`
	includeClose = `"`
	// maxIncludes bounds expansion so that a file including itself fails
	// instead of growing forever.
	maxIncludes = 1000
)

// Preprocess reads input, replaces every `#include "name"` directive with
// the contents of base/name, and writes the result to output. Included text
// is expanded again, so includes may nest.
type Preprocess struct {
	name   string
	input  string
	output string
	base   string
}

// NewPreprocess creates a preprocessing task. An empty base resolves
// includes relative to the input file's directory.
func NewPreprocess(name, input, output, base string) *Preprocess {
	if base == "" {
		base = filepath.Dir(input)
	}
	return &Preprocess{name: name, input: input, output: output, base: base}
}

func newPreprocessFromConfig(cfg Config, _ Env) (task.Task, error) {
	if err := requireField(cfg, "input", cfg.Input); err != nil {
		return nil, err
	}
	if err := requireField(cfg, "output", cfg.Output); err != nil {
		return nil, err
	}
	return NewPreprocess(cfg.Name, cfg.Input, cfg.Output, cfg.Base), nil
}

// Inputs returns the file being preprocessed. Included files are not listed.
func (p *Preprocess) Inputs() []string { return []string{p.input} }

func (p *Preprocess) Descriptor() task.Descriptor {
	return task.Descriptor{
		Kind:   KindPreprocess,
		Name:   p.name,
		Params: map[string]string{"input": p.input, "output": p.output, "base": p.base},
	}
}

func (p *Preprocess) Run(context.Context) (bool, error) {
	// #nosec G304 - path comes from the build file
	raw, err := os.ReadFile(p.input)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read preprocess input").
			WithContext("path", p.input).
			Build()
	}
	text, err := p.expand(string(raw))
	if err != nil {
		return false, err
	}
	if err := writeOutput(p.output, []byte(text)); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Preprocess) expand(text string) (string, error) {
	for range maxIncludes {
		directive, name, ok := nextInclude(text)
		if !ok {
			return text, nil
		}
		path := filepath.Join(p.base, name)
		// #nosec G304 - include names come from the preprocessed source
		included, err := os.ReadFile(path)
		if err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "read included file").
				WithContext("path", path).
				WithContext("input", p.input).
				Build()
		}
		text = strings.ReplaceAll(text, directive, string(included))
	}
	return "", ferrors.ValidationError(fmt.Sprintf("more than %d include expansions", maxIncludes)).
		WithContext("input", p.input).
		Build()
}

// nextInclude finds the first complete include directive in text and
// returns it together with the included name.
func nextInclude(text string) (directive, name string, ok bool) {
	start := strings.Index(text, includeOpen)
	if start < 0 {
		return "", "", false
	}
	rest := text[start+len(includeOpen):]
	end := strings.Index(rest, includeClose)
	if end < 0 {
		return "", "", false
	}
	name = rest[:end]
	return text[start : start+len(includeOpen)+end+len(includeClose)], name, true
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output").
			WithContext("path", path).
			Build()
	}
	return nil
}
