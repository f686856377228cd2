// Package sentinel provides leaf tasks that observe resources outside the graph.
//
// A sentinel has no prerequisites, so the engine evaluates it on every
// invocation. It compares the current state of its resource with the value
// stored by the previous run and reports a change when they differ.
package sentinel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindFile is the descriptor kind of file sentinels.
const KindFile = "file"

// chunkSize is the read size used when hashing file contents.
const chunkSize = 4096

// Mode selects how a file is compared between runs.
type Mode string

const (
	// ModeTimestamp compares the modification time.
	ModeTimestamp Mode = "timestamp"
	// ModeHash compares a digest of the contents.
	ModeHash Mode = "hash"
)

// ParseMode validates a comparison mode name. An empty name selects ModeTimestamp.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeTimestamp:
		return ModeTimestamp, nil
	case ModeHash:
		return ModeHash, nil
	default:
		return "", unknownModeError(raw)
	}
}

// ValueStore persists the last observed comparison value per resource.
type ValueStore interface {
	LoadValue(ctx context.Context, resource string) (string, error)
	SaveValue(ctx context.Context, resource, value string) error
}

// File is a sentinel on a single file.
type File struct {
	path   string
	mode   Mode
	values ValueStore
}

// NewFile creates a sentinel on path. The file does not need to exist yet;
// it is checked when the sentinel runs.
func NewFile(path string, mode Mode, values ValueStore) *File {
	return &File{path: path, mode: mode, values: values}
}

// Path returns the tracked file path.
func (f *File) Path() string { return f.path }

// Mode returns the comparison mode.
func (f *File) Mode() Mode { return f.mode }

func (f *File) Descriptor() task.Descriptor {
	return task.Descriptor{
		Kind:   KindFile,
		Name:   f.path,
		Params: map[string]string{"compare": string(f.mode)},
	}
}

// Run reports whether the file changed since the value was last stored.
// A change persists the new value; no change leaves the store untouched.
func (f *File) Run(ctx context.Context) (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil || !info.Mode().IsRegular() {
		return false, ferrors.NotFoundError("tracked file does not exist").
			WithContext("path", f.path).
			WithCause(err).
			Build()
	}

	current, err := f.comparison(info)
	if err != nil {
		return false, err
	}
	previous, err := f.values.LoadValue(ctx, f.path)
	if err != nil {
		return false, err
	}
	if current == previous {
		return false, nil
	}
	if err := f.values.SaveValue(ctx, f.path, current); err != nil {
		return false, err
	}
	return true, nil
}

func (f *File) comparison(info os.FileInfo) (string, error) {
	switch f.mode {
	case ModeTimestamp:
		return info.ModTime().UTC().Format(time.RFC3339Nano), nil
	case ModeHash:
		return hashFile(f.path)
	default:
		return "", unknownModeError(string(f.mode))
	}
}

func hashFile(path string) (string, error) {
	// #nosec G304 - path comes from the build file
	file, err := os.Open(path)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "open tracked file").
			WithContext("path", path).
			Build()
	}
	defer file.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		n, err := file.Read(buf)
		h.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", ferrors.WrapError(err, ferrors.CategoryFileSystem, "hash tracked file").
				WithContext("path", path).
				Build()
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func unknownModeError(mode string) error {
	return ferrors.ConfigError(fmt.Sprintf("unknown comparison method %q", mode)).
		WithContext("compare", mode).
		Build()
}
