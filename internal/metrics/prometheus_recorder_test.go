package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func findFamily(t *testing.T, reg *prom.Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not gathered", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestPrometheusRecorderCountsTaskResults(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncTaskResult("file", ResultExecuted)
	pr.IncTaskResult("file", ResultSkipped)
	pr.IncTaskResult("file", ResultSkipped)
	pr.IncTaskResult("command", ResultFailed)

	mf := findFamily(t, reg, "incbuild_task_results_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "kind")+"/"+labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	require.Equal(t, map[string]float64{
		"file/executed":  1,
		"file/skipped":   2,
		"command/failed": 1,
	}, got)
}

func TestPrometheusRecorderDurations(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveTaskDuration("copy", 150*time.Millisecond)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome(BuildOutcomeSuccess)

	task := findFamily(t, reg, "incbuild_task_duration_seconds")
	require.Len(t, task.GetMetric(), 1)
	require.Equal(t, uint64(1), task.GetMetric()[0].GetHistogram().GetSampleCount())

	build := findFamily(t, reg, "incbuild_build_duration_seconds")
	require.InDelta(t, 0.5, build.GetMetric()[0].GetHistogram().GetSampleSum(), 1e-9)

	outcome := findFamily(t, reg, "incbuild_build_outcomes_total")
	require.Equal(t, "success", labelValue(outcome.GetMetric()[0], "outcome"))
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	require.NotPanics(t, func() {
		pr.ObserveTaskDuration("file", time.Second)
		pr.IncTaskResult("file", ResultExecuted)
		pr.ObserveBuildDuration(time.Second)
		pr.IncBuildOutcome(BuildOutcomeFailed)
	})
}

func TestWriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncBuildOutcome(BuildOutcomeFailed)

	path := filepath.Join(t.TempDir(), "incbuild.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), `incbuild_build_outcomes_total{outcome="failed"} 1`))
}

func TestTestRecorderCounts(t *testing.T) {
	r := newTestRecorder()
	r.IncTaskResult("group", ResultSkipped)
	r.IncTaskResult("group", ResultSkipped)
	r.ObserveTaskDuration("group", time.Millisecond)
	r.IncBuildOutcome(BuildOutcomeSuccess)

	require.Equal(t, 2, r.taskResults["group"][ResultSkipped])
	require.Equal(t, 1, r.taskDurations["group"])
	require.Equal(t, 1, r.buildOutcomes[BuildOutcomeSuccess])
}
