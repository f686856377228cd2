package tasks

import (
	"context"
	"io"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindCopy copies a directory tree.
const KindCopy = "copy"

// Copy mirrors the src tree into dst, overwriting files that exist in both.
// Files only present in dst are left alone.
type Copy struct {
	name string
	src  string
	dst  string
}

// NewCopy creates a tree copy task.
func NewCopy(name, src, dst string) *Copy {
	return &Copy{name: name, src: src, dst: dst}
}

func newCopyFromConfig(cfg Config, _ Env) (task.Task, error) {
	if err := requireField(cfg, "src", cfg.Src); err != nil {
		return nil, err
	}
	if err := requireField(cfg, "dst", cfg.Dst); err != nil {
		return nil, err
	}
	return NewCopy(cfg.Name, cfg.Src, cfg.Dst), nil
}

func (c *Copy) Descriptor() task.Descriptor {
	return task.Descriptor{
		Kind:   KindCopy,
		Name:   c.name,
		Params: map[string]string{"src": c.src, "dst": c.dst},
	}
}

func (c *Copy) Run(context.Context) (bool, error) {
	if err := CopyDir(c.src, c.dst); err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryFileSystem, "copy tree").
			WithContext("src", c.src).
			WithContext("dst", c.dst).
			Build()
	}
	return true, nil
}

// CopyDir recursively copies a directory tree, preserving file modes.
func CopyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := CopyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	// #nosec G304 - paths come from the build file
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	// #nosec G304 - paths come from the build file
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}
