package tasks

import (
	"bytes"
	"context"
	"os"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindMarkdown renders a Markdown file to HTML.
const KindMarkdown = "markdown"

// Markdown renders input (GitHub flavored) into an HTML fragment at output.
type Markdown struct {
	name   string
	input  string
	output string
	md     goldmark.Markdown
}

// NewMarkdown creates a Markdown rendering task.
func NewMarkdown(name, input, output string) *Markdown {
	return &Markdown{
		name:   name,
		input:  input,
		output: output,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func newMarkdownFromConfig(cfg Config, _ Env) (task.Task, error) {
	if err := requireField(cfg, "input", cfg.Input); err != nil {
		return nil, err
	}
	if err := requireField(cfg, "output", cfg.Output); err != nil {
		return nil, err
	}
	return NewMarkdown(cfg.Name, cfg.Input, cfg.Output), nil
}

// Inputs returns the rendered source file.
func (m *Markdown) Inputs() []string { return []string{m.input} }

func (m *Markdown) Descriptor() task.Descriptor {
	return task.Descriptor{
		Kind:   KindMarkdown,
		Name:   m.name,
		Params: map[string]string{"input": m.input, "output": m.output},
	}
}

func (m *Markdown) Run(context.Context) (bool, error) {
	// #nosec G304 - path comes from the build file
	src, err := os.ReadFile(m.input)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read markdown input").
			WithContext("path", m.input).
			Build()
	}
	var buf bytes.Buffer
	if err := m.md.Convert(src, &buf); err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryRuntime, "render markdown").
			WithContext("path", m.input).
			Build()
	}
	if err := writeOutput(m.output, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}
