// Package runcache persists the outcome of task executions between invocations.
//
// Two kinds of entries share one storage.Store:
//   - outcome entries, keyed by the task fingerprint, holding a JSON Entry;
//   - sentinel values, keyed by the SHA-256 of a tracked resource path,
//     holding the raw comparison string (a timestamp or a content digest).
//
// The shapes are told apart only by the API that reads them.
package runcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/logfields"
	"git.home.luguber.info/inful/incbuild/internal/storage"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// Status is the recorded outcome of a task's last execution.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Entry is the persisted outcome record.
type Entry struct {
	Status     Status    `json:"status"`
	Task       string    `json:"task,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Cache reads and writes run outcomes and sentinel values.
type Cache struct {
	store  storage.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a cache over store.
func New(store storage.Store) *Cache {
	return &Cache{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// WithLogger sets a custom logger.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	c.logger = logger
	return c
}

// Store returns the underlying store.
func (c *Cache) Store() storage.Store { return c.store }

// Lookup returns the entry recorded for t. ok is false when the entry is
// absent or cannot be decoded; both mean the task's state is unknown.
func (c *Cache) Lookup(ctx context.Context, t task.Task) (Entry, bool) {
	data, err := c.store.Get(ctx, string(task.IDOf(t)))
	if err != nil {
		if !storage.IsNotFound(err) {
			c.logger.Debug("Unreadable run cache entry", logfields.Task(task.Describe(t)), logfields.Error(err))
		} else {
			c.logger.Debug("New task", logfields.Task(task.Describe(t)))
		}
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Debug("Corrupt run cache entry", logfields.Task(task.Describe(t)), logfields.Error(err))
		return Entry{}, false
	}
	if e.Status != StatusSucceeded && e.Status != StatusFailed {
		c.logger.Debug("Run cache entry has unknown status",
			logfields.Task(task.Describe(t)), slog.String("status", string(e.Status)))
		return Entry{}, false
	}
	return e, true
}

// HasSucceeded reports whether the last recorded execution of t succeeded.
// Absent or corrupt entries report false.
func (c *Cache) HasSucceeded(ctx context.Context, t task.Task) bool {
	e, ok := c.Lookup(ctx, t)
	return ok && e.Status == StatusSucceeded
}

// PreviousRunFailed reports whether t must be rebuilt because of its last
// recorded outcome. Absent or corrupt entries report true.
func (c *Cache) PreviousRunFailed(ctx context.Context, t task.Task) bool {
	e, ok := c.Lookup(ctx, t)
	return !ok || e.Status == StatusFailed
}

// Record persists the outcome of an execution attempt of t.
func (c *Cache) Record(ctx context.Context, t task.Task, failed bool) error {
	e := Entry{Status: StatusSucceeded, Task: task.Describe(t), RecordedAt: c.now().UTC()}
	if failed {
		e.Status = StatusFailed
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal run cache entry: %w", err)
	}
	if err := c.store.Put(ctx, string(task.IDOf(t)), data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCache, "record task outcome").
			WithContext("task", task.Describe(t)).
			Build()
	}
	return nil
}

// Clear deletes every entry, outcomes and sentinel values alike.
func (c *Cache) Clear(ctx context.Context) error {
	c.logger.Debug("Clearing run cache")
	if err := c.store.Clear(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCache, "clear run cache").Build()
	}
	return nil
}

// ValueKey returns the storage key of the sentinel value for resource.
func ValueKey(resource string) string {
	sum := sha256.Sum256([]byte(resource))
	return hex.EncodeToString(sum[:])
}

// LoadValue returns the comparison value stored for resource, or "" if none.
func (c *Cache) LoadValue(ctx context.Context, resource string) (string, error) {
	data, err := c.store.Get(ctx, ValueKey(resource))
	if err != nil {
		if storage.IsNotFound(err) {
			return "", nil
		}
		return "", ferrors.WrapError(err, ferrors.CategoryCache, "load sentinel value").
			WithContext("path", resource).
			Build()
	}
	return string(data), nil
}

// SaveValue stores the comparison value for resource.
func (c *Cache) SaveValue(ctx context.Context, resource, value string) error {
	if err := c.store.Put(ctx, ValueKey(resource), []byte(value)); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryCache, "save sentinel value").
			WithContext("path", resource).
			Build()
	}
	return nil
}
