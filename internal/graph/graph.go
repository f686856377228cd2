// Package graph holds the dependency graph of build tasks.
//
// The graph maps each task to the ordered list of tasks it depends on.
// Registration is first-write-wins: registering prerequisites for a task that
// already has an entry is a documented no-op, not an error. Aggregators that
// need to grow their prerequisites use Extend instead.
//
// The graph performs no cycle detection; the engine reports a cycle when it
// reaches a task that is still resolving its own prerequisites.
package graph

import (
	"log/slog"

	"git.home.luguber.info/inful/incbuild/internal/logfields"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

type entry struct {
	task    task.Task
	prereqs []task.Task
	// registered is false for tasks only known through Lookup bookkeeping,
	// i.e. tasks that appeared as prerequisites but have no entry of their own.
	registered bool
}

// Graph is a dependency graph. It is not safe for concurrent mutation.
type Graph struct {
	entries map[task.ID]*entry
	order   []task.ID
	logger  *slog.Logger
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		entries: make(map[task.ID]*entry),
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (g *Graph) WithLogger(logger *slog.Logger) *Graph {
	g.logger = logger
	return g
}

// Register records prereqs as the ordered prerequisites of t.
// The first registration for a task wins; later calls return false and
// leave the graph unchanged.
func (g *Graph) Register(t task.Task, prereqs ...task.Task) bool {
	e := g.track(t)
	for _, p := range prereqs {
		g.track(p)
	}
	if e.registered {
		g.logger.Debug("Prerequisites already registered, ignoring",
			logfields.Task(task.Describe(t)))
		return false
	}
	e.registered = true
	e.prereqs = append([]task.Task(nil), prereqs...)
	return true
}

// Extend appends more prerequisites to t, registering t first if needed.
func (g *Graph) Extend(t task.Task, more ...task.Task) {
	e := g.track(t)
	for _, p := range more {
		g.track(p)
	}
	e.registered = true
	e.prereqs = append(e.prereqs, more...)
}

// Prerequisites returns the registered prerequisites of t in registration
// order. The boolean is false for tasks that were never registered.
func (g *Graph) Prerequisites(t task.Task) ([]task.Task, bool) {
	e, ok := g.entries[task.IDOf(t)]
	if !ok || !e.registered {
		return nil, false
	}
	return append([]task.Task(nil), e.prereqs...), true
}

// Lookup returns the task known under id.
func (g *Graph) Lookup(id task.ID) (task.Task, bool) {
	e, ok := g.entries[id]
	if !ok {
		return nil, false
	}
	return e.task, true
}

// Tasks returns every task the graph knows about, in first-seen order.
func (g *Graph) Tasks() []task.Task {
	out := make([]task.Task, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.entries[id].task)
	}
	return out
}

// Len returns the number of known tasks.
func (g *Graph) Len() int { return len(g.order) }

// track makes t known to the graph without registering prerequisites.
// The first task value seen for an ID is the one kept.
func (g *Graph) track(t task.Task) *entry {
	id := task.IDOf(t)
	if e, ok := g.entries[id]; ok {
		return e
	}
	e := &entry{task: t}
	g.entries[id] = e
	g.order = append(g.order, id)
	return e
}
