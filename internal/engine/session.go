package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/incbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/incbuild/internal/graph"
	"git.home.luguber.info/inful/incbuild/internal/logfields"
	"git.home.luguber.info/inful/incbuild/internal/metrics"
	"git.home.luguber.info/inful/incbuild/internal/task"
)

// RunCache is the persisted outcome store consulted by a session.
type RunCache interface {
	HasSucceeded(ctx context.Context, t task.Task) bool
	PreviousRunFailed(ctx context.Context, t task.Task) bool
	Record(ctx context.Context, t task.Task, failed bool) error
}

// Options controls forcing for a single Build call.
type Options struct {
	// ForceSingle runs the requested task even if nothing changed.
	// Prerequisites follow their normal rules.
	ForceSingle bool
	// ForceTree runs the requested task and every transitive prerequisite.
	ForceTree bool
}

type memoKey struct {
	id          task.ID
	forceSingle bool
	forceTree   bool
}

type result struct {
	changed bool
	err     error
}

// Session is a single build invocation over a graph and a run cache.
type Session struct {
	graph        *graph.Graph
	cache        RunCache
	logger       *slog.Logger
	recorder     metrics.Recorder
	invocationID string
	now          func() time.Time

	builds    map[memoKey]result
	runs      map[task.ID]result
	resolving map[task.ID]bool
	outcomes  map[task.ID]*Outcome
	order     []task.ID
	started   time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithInvocationID overrides the generated invocation ID.
func WithInvocationID(id string) Option {
	return func(s *Session) { s.invocationID = id }
}

// NewSession creates a session. Every session gets a fresh memo, so two
// sessions over the same graph and cache behave like two invocations.
func NewSession(g *graph.Graph, cache RunCache, opts ...Option) *Session {
	s := &Session{
		graph:        g,
		cache:        cache,
		logger:       slog.Default(),
		recorder:     metrics.NoopRecorder{},
		invocationID: uuid.NewString(),
		now:          time.Now,
		builds:       make(map[memoKey]result),
		runs:         make(map[task.ID]result),
		resolving:    make(map[task.ID]bool),
		outcomes:     make(map[task.ID]*Outcome),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logfields.InvocationID(s.invocationID))
	return s
}

// InvocationID returns the identifier attached to this session's logs.
func (s *Session) InvocationID() string { return s.invocationID }

// Build brings t up to date and reports whether it changed.
//
// A task failure is recorded in the run cache and returned as a build
// error; it aborts the whole request.
func (s *Session) Build(ctx context.Context, t task.Task, opts Options) (bool, error) {
	if s.started.IsZero() {
		s.started = s.now()
	}
	start := s.now()
	changed, err := s.build(ctx, t, opts)
	s.recorder.ObserveBuildDuration(s.now().Sub(start))
	if err != nil {
		s.recorder.IncBuildOutcome(metrics.BuildOutcomeFailed)
		return false, err
	}
	s.recorder.IncBuildOutcome(metrics.BuildOutcomeSuccess)
	return changed, nil
}

func (s *Session) build(ctx context.Context, t task.Task, opts Options) (bool, error) {
	id := task.IDOf(t)
	if s.resolving[id] {
		return false, ferrors.ValidationError("dependency cycle detected").
			WithContext("task", task.Describe(t)).
			Build()
	}
	key := memoKey{id: id, forceSingle: opts.ForceSingle, forceTree: opts.ForceTree}
	if r, ok := s.builds[key]; ok {
		return r.changed, r.err
	}

	out := s.outcome(t)
	if out.State == StateNotVisited {
		out.State = StateResolving
	}
	s.resolving[id] = true
	changed, err := s.resolve(ctx, t, opts, out)
	delete(s.resolving, id)

	s.builds[key] = result{changed: changed, err: err}
	return changed, err
}

func (s *Session) resolve(ctx context.Context, t task.Task, opts Options, out *Outcome) (bool, error) {
	prereqs, _ := s.graph.Prerequisites(t)

	// A leaf has nothing to compare against, so it always runs its own check.
	depsChanged := len(prereqs) == 0
	var firstErr error
	for _, p := range prereqs {
		changed, err := s.build(ctx, p, Options{ForceTree: opts.ForceTree})
		if err != nil {
			firstErr = err
			break
		}
		depsChanged = depsChanged || changed
	}
	if firstErr != nil {
		if out.State == StateResolving {
			out.State = StateNotVisited
		}
		return false, firstErr
	}

	mustRun := depsChanged ||
		opts.ForceSingle ||
		opts.ForceTree ||
		!s.cache.HasSucceeded(ctx, t) ||
		s.cache.PreviousRunFailed(ctx, t)

	// A task that already ran in this session keeps reporting that result,
	// whatever options it is requested with now.
	if _, ran := s.runs[task.IDOf(t)]; ran || mustRun {
		return s.run(ctx, t, out)
	}
	if out.State == StateResolving {
		out.State = StateSkipped
		s.recorder.IncTaskResult(out.Kind, metrics.ResultSkipped)
	}
	s.logger.Debug("Task up to date",
		logfields.Task(out.Task),
		logfields.Kind(out.Kind),
		logfields.State(string(out.State)))
	return false, nil
}

// run executes t at most once per session.
func (s *Session) run(ctx context.Context, t task.Task, out *Outcome) (bool, error) {
	id := task.IDOf(t)
	if r, ok := s.runs[id]; ok {
		return r.changed, r.err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	out.State = StateExecuted
	start := s.now()
	changed, runErr := invoke(ctx, t)
	out.Duration = s.now().Sub(start)
	out.Changed = changed
	s.recorder.ObserveTaskDuration(out.Kind, out.Duration)

	var r result
	if runErr != nil {
		out.Err = runErr
		s.recorder.IncTaskResult(out.Kind, metrics.ResultFailed)
		s.logger.Error("Task failed",
			logfields.Task(out.Task),
			logfields.Kind(out.Kind),
			logfields.Duration(out.Duration),
			logfields.Error(runErr))
		r.err = ferrors.WrapError(runErr, ferrors.CategoryBuild, "task failed").
			WithContext("task", out.Task).
			Fatal().
			Build()
		if err := s.cache.Record(ctx, t, true); err != nil {
			s.logger.Warn("Failed to record task failure", logfields.Task(out.Task), logfields.Error(err))
		}
	} else {
		s.recorder.IncTaskResult(out.Kind, metrics.ResultExecuted)
		s.logger.Info("Task executed",
			logfields.Task(out.Task),
			logfields.Kind(out.Kind),
			logfields.Changed(changed),
			logfields.Duration(out.Duration))
		r.changed = changed
		if err := s.cache.Record(ctx, t, false); err != nil {
			r = result{err: err}
			out.Err = err
		}
	}
	s.runs[id] = r
	return r.changed, r.err
}

// invoke runs the task body and turns a panic into an error.
func invoke(ctx context.Context, t task.Task) (changed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			changed = false
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return t.Run(ctx)
}

func (s *Session) outcome(t task.Task) *Outcome {
	id := task.IDOf(t)
	if out, ok := s.outcomes[id]; ok {
		return out
	}
	desc := t.Descriptor()
	out := &Outcome{
		ID:    id,
		Task:  desc.String(),
		Kind:  desc.Kind,
		State: StateNotVisited,
	}
	s.outcomes[id] = out
	s.order = append(s.order, id)
	return out
}
