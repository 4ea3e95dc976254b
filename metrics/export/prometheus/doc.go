// Package prometheus renders authsvc engine metrics in the Prometheus text
// exposition format. Counters are named authsvc_*_total and latency
// histograms authsvc_*_seconds. Nothing is registered in a global registry;
// callers mount [PrometheusExporter.Handler].
package prometheus
