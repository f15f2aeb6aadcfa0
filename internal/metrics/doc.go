// Package metrics provides an observability framework for depwatch's
// reconciliation and supervision counters.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics
// collection without requiring explicit nil checks throughout the codebase.
// By default, all components use NoopRecorder which implements the Recorder
// interface with no-op methods.
//
// # Architecture
//
//  1. Recorder interface - defines all metrics operations
//  2. NoopRecorder - default implementation that does nothing
//  3. PrometheusRecorder - real implementation backed by a Prometheus registry
//
// # Activation
//
// The Prometheus registry backing PrometheusRecorder is never served over
// HTTP by the daemon itself (the daemon has no network control surface);
// the optional `depwatch metrics-dump` CLI subcommand prints the registry's
// text-exposition once and exits.
package metrics
