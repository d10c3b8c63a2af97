// Package metrics provides Prometheus instrumentation for the media library.
//
// All metrics are prefixed with "media_library_" and registered on the
// default registry through promauto, so importing the package is enough to
// expose them on /metrics.
//
// # Metric Categories
//
//   - HTTP: request totals, durations and in-flight requests
//   - Database: query totals and durations, transaction durations
//   - Sync: runs, durations and record transitions per pass
//   - Pipeline: records processed per job kind and status, probe durations
//   - Preview cache: hits, misses, evictions and current entries
//   - History: undo/redo/commit operations
//   - Filesystem: NFS retry attempts, successes and failures
//   - Library: gauges refreshed periodically by the Collector
package metrics
