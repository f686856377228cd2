// Package metrics records build engine observations.
//
// Components receive a Recorder through an option and default to
// NoopRecorder, so nothing has to check for nil:
//
//	session := engine.NewSession(g, cache, engine.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry.
// A CLI run has no scrape endpoint, so the registry is written once to a
// node_exporter textfile after the build (see WriteTextfile).
package metrics
