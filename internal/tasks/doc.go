// Package tasks provides the built-in task kinds available to build files.
//
// Every kind reports its settings through its descriptor, so two targets
// configured identically share one run cache entry.
package tasks
