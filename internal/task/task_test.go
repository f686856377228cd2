package task

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintIsStableAndOrderIndependent(t *testing.T) {
	a := Descriptor{Kind: "file", Name: "src/a.blend", Params: map[string]string{"compare": "hash", "x": "1"}}
	b := Descriptor{Kind: "file", Name: "src/a.blend", Params: map[string]string{"x": "1", "compare": "hash"}}

	require.Equal(t, a.Fingerprint(), b.Fingerprint())
	require.Len(t, a.Fingerprint(), 64)
	require.Equal(t, a.ID(), b.ID())
}

func TestFingerprintSeparatesIdentityFields(t *testing.T) {
	base := Descriptor{Kind: "file", Name: "a.txt", Params: map[string]string{"compare": "timestamp"}}

	require.NotEqual(t, base.ID(), base.With("compare", "hash").ID())
	require.NotEqual(t, base.ID(), Descriptor{Kind: "command", Name: "a.txt", Params: base.Params}.ID())
	require.NotEqual(t, base.ID(), Descriptor{Kind: "file", Name: "b.txt", Params: base.Params}.ID())
}

func TestDescriptorWithCopiesParams(t *testing.T) {
	base := Descriptor{Kind: "func", Name: "x", Params: map[string]string{"a": "1"}}
	next := base.With("b", "2")

	require.Len(t, base.Params, 1)
	require.Equal(t, "2", next.Params["b"])
	require.Equal(t, "func(x)", next.String())
}

func TestFuncAndAction(t *testing.T) {
	ctx := context.Background()

	unchanged := NewFunc("check", func(context.Context) (bool, error) { return false, nil })
	changed, err := unchanged.Run(ctx)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, KindFunc, unchanged.Descriptor().Kind)

	action := NewAction("write", func(context.Context) error { return nil })
	changed, err = action.Run(ctx)
	require.NoError(t, err)
	require.True(t, changed, "an action without a result counts as changed")

	boom := errors.New("boom")
	failing := NewAction("fail", func(context.Context) error { return boom })
	_, err = failing.Run(ctx)
	require.ErrorIs(t, err, boom)
}

func TestFuncParamsAreIdentity(t *testing.T) {
	noop := func(context.Context) (bool, error) { return true, nil }
	a := NewFunc("render", noop, map[string]string{"out": "a.png"})
	b := NewFunc("render", noop, map[string]string{"out": "b.png"})
	c := NewFunc("render", noop, map[string]string{"out": "a.png"})

	require.NotEqual(t, IDOf(a), IDOf(b))
	require.Equal(t, IDOf(a), IDOf(c))
	require.Equal(t, "func(render)", Describe(a))
}
