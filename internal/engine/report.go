package engine

import (
	"time"

	"git.home.luguber.info/inful/incbuild/internal/task"
)

// State is the per-invocation state of a task.
type State string

const (
	StateNotVisited State = "not-visited"
	StateResolving  State = "resolving"
	StateExecuted   State = "executed"
	StateSkipped    State = "skipped"
)

// Outcome describes what happened to one task during a session.
type Outcome struct {
	ID       task.ID
	Task     string
	Kind     string
	State    State
	Changed  bool
	Duration time.Duration
	Err      error
}

// Failed reports whether the task body returned an error.
func (o Outcome) Failed() bool { return o.Err != nil }

// Report summarizes a session.
type Report struct {
	InvocationID string
	Started      time.Time
	Elapsed      time.Duration
	Outcomes     []Outcome
	Executed     int
	Skipped      int
	Failed       int
}

// Report returns the outcome of every task the session visited, in the
// order they were first reached.
func (s *Session) Report() Report {
	r := Report{
		InvocationID: s.invocationID,
		Started:      s.started,
		Outcomes:     make([]Outcome, 0, len(s.order)),
	}
	if !s.started.IsZero() {
		r.Elapsed = s.now().Sub(s.started)
	}
	for _, id := range s.order {
		out := *s.outcomes[id]
		switch {
		case out.Failed():
			r.Failed++
		case out.State == StateExecuted:
			r.Executed++
		case out.State == StateSkipped:
			r.Skipped++
		}
		r.Outcomes = append(r.Outcomes, out)
	}
	return r
}

// State returns the state of t in this session.
func (s *Session) State(t task.Task) State {
	if out, ok := s.outcomes[task.IDOf(t)]; ok {
		return out.State
	}
	return StateNotVisited
}

// Executed reports whether the body of t ran during this session.
func (s *Session) Executed(t task.Task) bool {
	_, ok := s.runs[task.IDOf(t)]
	return ok
}
