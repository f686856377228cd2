package metrics

import (
	"sync"
	"time"
)

// testRecorder counts calls; used by tests that need to assert on hooks
// without a Prometheus registry.
type testRecorder struct {
	mu             sync.Mutex
	taskDurations  map[string]int
	taskResults    map[string]map[ResultLabel]int
	buildDurations int
	buildOutcomes  map[BuildOutcomeLabel]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		taskDurations: map[string]int{},
		taskResults:   map[string]map[ResultLabel]int{},
		buildOutcomes: map[BuildOutcomeLabel]int{},
	}
}

func (t *testRecorder) ObserveTaskDuration(kind string, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taskDurations[kind]++
}

func (t *testRecorder) IncTaskResult(kind string, result ResultLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.taskResults[kind]
	if !ok {
		m = map[ResultLabel]int{}
		t.taskResults[kind] = m
	}
	m[result]++
}

func (t *testRecorder) ObserveBuildDuration(time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildDurations++
}

func (t *testRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildOutcomes[outcome]++
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = newTestRecorder()
)
