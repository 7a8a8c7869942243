// Package metrics records build session metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay
// optional:
//
//	session := build.NewSession(cfg, deps).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on the given registry and
// HTTPHandler serves that registry for the daemon's metrics endpoint.
package metrics
