package graph

import (
	"fmt"
	"io"
	"strings"

	"git.home.luguber.info/inful/incbuild/internal/task"
)

// Format selects how a graph is rendered.
type Format string

const (
	FormatText Format = "text"
	FormatDOT  Format = "dot"
)

// ParseFormat validates a render format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatDOT:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported graph format %q (want text or dot)", s)
	}
}

// Roots returns the tasks that are not a prerequisite of any other task,
// in first-seen order.
func (g *Graph) Roots() []task.Task {
	depended := map[task.ID]bool{}
	for _, id := range g.order {
		for _, p := range g.entries[id].prereqs {
			depended[task.IDOf(p)] = true
		}
	}
	var roots []task.Task
	for _, id := range g.order {
		if !depended[id] {
			roots = append(roots, g.entries[id].task)
		}
	}
	return roots
}

// Render writes the part of the graph reachable from roots. With no roots
// the whole graph is rendered starting from Roots.
func (g *Graph) Render(w io.Writer, format Format, roots ...task.Task) error {
	if len(roots) == 0 {
		roots = g.Roots()
	}
	switch format {
	case FormatText:
		return g.renderText(w, roots)
	case FormatDOT:
		return g.renderDOT(w, roots)
	default:
		return fmt.Errorf("unsupported graph format %q", format)
	}
}

// renderText prints an indented tree. A task already printed is shown again
// with a trailing "..." and not expanded.
func (g *Graph) renderText(w io.Writer, roots []task.Task) error {
	seen := map[task.ID]bool{}
	var walk func(t task.Task, depth int) error
	walk = func(t task.Task, depth int) error {
		id := task.IDOf(t)
		line := strings.Repeat("  ", depth) + task.Describe(t)
		if seen[id] {
			_, err := fmt.Fprintln(w, line+" ...")
			return err
		}
		seen[id] = true
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		prereqs, _ := g.Prerequisites(t)
		for _, p := range prereqs {
			if err := walk(p, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := walk(r, 0); err != nil {
			return err
		}
	}
	return nil
}

// renderDOT prints a Graphviz digraph with edges from a task to its prerequisites.
func (g *Graph) renderDOT(w io.Writer, roots []task.Task) error {
	var b strings.Builder
	b.WriteString("digraph incbuild {\n  rankdir=LR;\n")
	seen := map[task.ID]bool{}
	var walk func(t task.Task)
	walk = func(t task.Task) {
		id := task.IDOf(t)
		if seen[id] {
			return
		}
		seen[id] = true
		fmt.Fprintf(&b, "  %q [label=%q];\n", nodeName(id), task.Describe(t))
		prereqs, _ := g.Prerequisites(t)
		for _, p := range prereqs {
			fmt.Fprintf(&b, "  %q -> %q;\n", nodeName(id), nodeName(task.IDOf(p)))
		}
		for _, p := range prereqs {
			walk(p)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func nodeName(id task.ID) string {
	s := string(id)
	if len(s) > 12 {
		s = s[:12]
	}
	return "t" + s
}
