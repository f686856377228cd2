package graph

import (
	"context"

	"git.home.luguber.info/inful/incbuild/internal/task"
)

// KindGroup is the descriptor kind of aggregator tasks.
const KindGroup = "group"

// Group is a task with no behavior of its own. It exists to give a set of
// prerequisites a single name. Running a group always reports a change, so
// building it always evaluates its members.
type Group struct {
	graph *Graph
	desc  task.Descriptor
}

// NewGroup creates a group named name and registers members as its prerequisites.
func NewGroup(g *Graph, name string, members ...task.Task) *Group {
	grp := &Group{
		graph: g,
		desc:  task.Descriptor{Kind: KindGroup, Name: name},
	}
	g.Extend(grp, members...)
	return grp
}

// Add grows the group's prerequisites after construction.
func (grp *Group) Add(members ...task.Task) {
	grp.graph.Extend(grp, members...)
}

func (grp *Group) Descriptor() task.Descriptor { return grp.desc }

func (grp *Group) Run(context.Context) (bool, error) { return true, nil }
