// Package task defines the unit of work scheduled by the build engine.
//
// A task is identified by an explicit Descriptor rather than by the identity
// of its body: the descriptor's canonical encoding is hashed into a
// fingerprint that stays stable across processes, so the persistent run
// cache can find the entry written by a previous invocation.
package task

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
)

// ID is the fingerprint of a task descriptor.
type ID string

func (id ID) String() string { return string(id) }

// Descriptor holds the identity-defining data of a task.
//
// Tasks whose descriptors are equal are the same task: they share a graph
// node, a memo slot and a run cache entry.
type Descriptor struct {
	Kind   string            `json:"kind"`
	Name   string            `json:"name"`
	Params map[string]string `json:"params,omitempty"`
}

// Fingerprint returns the hex SHA-256 of the descriptor's canonical JSON.
// encoding/json writes map keys sorted, which makes the encoding deterministic.
func (d Descriptor) Fingerprint() string {
	data, err := json.Marshal(d)
	if err != nil {
		// Only strings are marshaled; this cannot fail.
		panic(fmt.Sprintf("task: marshal descriptor: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ID returns the descriptor fingerprint as a task ID.
func (d Descriptor) ID() ID { return ID(d.Fingerprint()) }

// String renders the descriptor as kind(name).
func (d Descriptor) String() string {
	return d.Kind + "(" + d.Name + ")"
}

// With returns a copy of d with an extra parameter.
func (d Descriptor) With(key, value string) Descriptor {
	params := make(map[string]string, len(d.Params)+1)
	maps.Copy(params, d.Params)
	params[key] = value
	d.Params = params
	return d
}

// Task is a unit of buildable work.
//
// Run reports whether the task changed its output. Returning false lets the
// engine skip dependents whose other prerequisites did not change either.
// A non-nil error fails the task and aborts the build.
type Task interface {
	Descriptor() Descriptor
	Run(ctx context.Context) (changed bool, err error)
}

// IDOf returns the ID of t.
func IDOf(t Task) ID { return t.Descriptor().ID() }

// Describe returns the display form of t.
func Describe(t Task) string { return t.Descriptor().String() }
