package graph

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/incbuild/internal/task"
)

func diamondGraph() (*Graph, task.Task) {
	g := New()
	leaf := newTask("L")
	b, c := newTask("B"), newTask("C")
	a := newTask("A")
	g.Register(a, b, c)
	g.Register(b, leaf)
	g.Register(c, leaf)
	return g, a
}

func TestRenderText(t *testing.T) {
	g, _ := diamondGraph()
	var buf bytes.Buffer

	require.NoError(t, g.Render(&buf, FormatText))
	want := strings.Join([]string{
		"func(A)",
		"  func(B)",
		"    func(L)",
		"  func(C)",
		"    func(L) ...",
		"",
	}, "\n")
	require.Equal(t, want, buf.String())
}

func TestRenderDOT(t *testing.T) {
	g, a := diamondGraph()
	var buf bytes.Buffer

	require.NoError(t, g.Render(&buf, FormatDOT, a))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "digraph incbuild {"))
	require.Equal(t, 4, strings.Count(out, "[label="))
	require.Equal(t, 4, strings.Count(out, "->"))
	require.Contains(t, out, `label="func(L)"`)
}

func TestRoots(t *testing.T) {
	g, a := diamondGraph()
	extra := newTask("lonely")
	g.Register(extra)

	roots := g.Roots()
	require.Len(t, roots, 2)
	require.Equal(t, task.IDOf(a), task.IDOf(roots[0]))
	require.Equal(t, task.IDOf(extra), task.IDOf(roots[1]))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("DOT")
	require.NoError(t, err)
	require.Equal(t, FormatDOT, f)

	_, err = ParseFormat("mermaid")
	require.Error(t, err)
}
