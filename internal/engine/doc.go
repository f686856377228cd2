// Package engine decides which tasks of a dependency graph must run and runs them.
//
// A Session is one build invocation. It walks the graph depth-first from the
// requested task, building prerequisites in registration order, and executes
// a task only when a prerequisite changed, when forced, or when the run cache
// has no record of a previous success. Results are memoized for the lifetime
// of the session so that each task body runs at most once, however many paths
// lead to it.
//
// Sessions are not safe for concurrent use.
package engine
