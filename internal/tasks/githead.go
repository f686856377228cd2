package tasks

import (
	"context"

	"github.com/go-git/go-git/v5"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/sentinel"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindGitHead watches the HEAD commit of a git repository.
const KindGitHead = "git_head"

// GitHead is a sentinel on a repository's HEAD commit. It reports a change
// when HEAD moved since the last stored value, like sentinel.File does for
// a file.
type GitHead struct {
	path   string
	values sentinel.ValueStore
}

// NewGitHead creates a HEAD sentinel for the repository at path.
func NewGitHead(path string, values sentinel.ValueStore) *GitHead {
	return &GitHead{path: path, values: values}
}

func newGitHeadFromConfig(cfg Config, env Env) (task.Task, error) {
	if err := requireField(cfg, "path", cfg.Path); err != nil {
		return nil, err
	}
	return NewGitHead(cfg.Path, env.Values), nil
}

func (g *GitHead) Descriptor() task.Descriptor {
	return task.Descriptor{Kind: KindGitHead, Name: g.path}
}

// Run resolves HEAD and compares it with the stored commit hash.
func (g *GitHead) Run(ctx context.Context) (bool, error) {
	head, err := ReadHead(g.path)
	if err != nil {
		return false, err
	}
	resource := KindGitHead + ":" + g.path
	previous, err := g.values.LoadValue(ctx, resource)
	if err != nil {
		return false, err
	}
	if head == previous {
		return false, nil
	}
	if err := g.values.SaveValue(ctx, resource, head); err != nil {
		return false, err
	}
	return true, nil
}

// ReadHead returns the commit hash HEAD points to in the repository at path.
func ReadHead(path string) (string, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryNotFound, "open git repository").
			WithContext("path", path).
			Fatal().
			Build()
	}
	ref, err := repo.Head()
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryNotFound, "resolve HEAD").
			WithContext("path", path).
			Fatal().
			Build()
	}
	return ref.Hash().String(), nil
}
