// Package otel publishes authsvc engine metrics through an OpenTelemetry
// meter. Counters become Int64ObservableCounters. Each latency histogram
// becomes a cumulative bucket counter keyed by an "le" attribute plus
// matching count and sum instruments. The caller owns the MeterProvider.
package otel
