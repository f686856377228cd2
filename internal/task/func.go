package task

import "context"

// KindFunc is the descriptor kind of tasks built from Go functions.
const KindFunc = "func"

// Func adapts a Go function to the Task interface.
type Func struct {
	desc Descriptor
	fn   func(ctx context.Context) (bool, error)
}

// NewFunc creates a task named name whose body reports its own change signal.
// params become part of the task identity.
func NewFunc(name string, fn func(ctx context.Context) (bool, error), params ...map[string]string) *Func {
	desc := Descriptor{Kind: KindFunc, Name: name}
	for _, p := range params {
		for k, v := range p {
			desc = desc.With(k, v)
		}
	}
	return &Func{desc: desc, fn: fn}
}

// NewAction creates a task whose body returns no change signal. A successful
// action always counts as changed.
func NewAction(name string, fn func(ctx context.Context) error) *Func {
	return NewFunc(name, func(ctx context.Context) (bool, error) {
		if err := fn(ctx); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (f *Func) Descriptor() Descriptor { return f.desc }

func (f *Func) Run(ctx context.Context) (bool, error) { return f.fn(ctx) }
