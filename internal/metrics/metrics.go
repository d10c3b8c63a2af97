package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"result"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Sync metrics
var (
	SyncRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_sync_runs_total",
			Help: "Total number of sync passes",
		},
	)

	SyncErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_sync_errors_total",
			Help: "Total number of sync passes that failed",
		},
	)

	SyncIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_sync_running",
			Help: "Whether a sync pass is currently running (1 = running, 0 = idle)",
		},
	)

	SyncLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_sync_last_run_timestamp",
			Help: "Unix timestamp of the last completed sync pass",
		},
	)

	SyncLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_sync_last_run_duration_seconds",
			Help: "Duration of the last sync pass in seconds",
		},
	)

	SyncRecordChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_sync_record_changes_total",
			Help: "Record transitions produced by sync passes",
		},
		[]string{"change"}, // added, changed, missing, repaired
	)
)

// Pipeline metrics
var (
	PipelineRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_pipeline_running",
			Help: "Whether the processing pipeline is running (1 = running, 0 = idle)",
		},
	)

	PipelineRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_pipeline_records_total",
			Help: "Records processed by the pipeline by job kind and status",
		},
		[]string{"kind", "status"},
	)

	PipelineRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_pipeline_remaining",
			Help: "Records left in the current pipeline run",
		},
	)

	ProbeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_library_probe_duration_seconds",
			Help:    "Media probe duration in seconds by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	ProbeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_probe_failures_total",
			Help: "Media probe failures by operation",
		},
		[]string{"operation"},
	)
)

// Preview cache metrics
var (
	PreviewCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_preview_cache_hits_total",
			Help: "Total number of preview cache hits",
		},
	)

	PreviewCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_preview_cache_misses_total",
			Help: "Total number of preview cache misses",
		},
	)

	PreviewCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_library_preview_cache_evictions_total",
			Help: "Entries evicted from the preview cache to stay within capacity",
		},
	)

	PreviewCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_preview_cache_entries",
			Help: "Number of entries currently held by the preview cache",
		},
	)
)

// History metrics
var (
	HistoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_history_operations_total",
			Help: "Edit history operations by kind",
		},
		[]string{"operation"}, // commit, undo, redo
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_attempts_total",
			Help: "Filesystem retries after stale NFS file handles",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after retrying",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_memory_usage_ratio",
			Help: "Heap usage as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_memory_paused",
			Help: "Whether background processing is paused for memory pressure",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_library_watcher_events_total",
			Help: "Filesystem events seen by the library watcher",
		},
		[]string{"op"},
	)
)

// Library metrics
var (
	LibraryRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_library_records",
			Help: "Library records by state",
		},
		[]string{"state"}, // total, missing, hidden, deleted, unplayable
	)

	LibraryThumbnails = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_library_thumbnails",
			Help: "Number of stored primary thumbnails",
		},
	)
)
