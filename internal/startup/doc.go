// Package startup handles configuration loading and the startup and shutdown
// logging shared by every command.
//
// # Configuration
//
// [LoadConfig] reads environment variables, after loading a .env file from
// the working directory when one exists:
//
//   - LIBRARY_DIR: library root (default: current directory; --library flag wins)
//   - DATABASE_DIR: store directory (default: LIBRARY_DIR/.medialib)
//   - PORT: HTTP port for serve (default: 8080)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - LOG_HEALTH_CHECKS: log /health requests (default: false)
//   - PREVIEW_CACHE_SIZE: timeline previews kept in memory (default: 150)
//   - TIMELINE_FRAMES: frames per timeline preview (default: 10)
//   - THUMBNAIL_SIZE: bounding box of rendered frames in pixels (default: 320)
//   - PROBE_TIMEOUT: limit for one ffmpeg or ffprobe call (default: 30s)
//   - FFMPEG_PATH, FFPROBE_PATH: tool locations (default: looked up in PATH)
//   - EXIFTOOL_ENABLED: use exiftool when ffprobe finds no duration (default: true)
//   - VIPS_ENABLED: resize frames with libvips (default: false)
//   - HISTORY_DEPTH: undo entries kept (default: 100)
//   - WATCH_ENABLED, WATCH_DEBOUNCE: filesystem watcher for serve (default: true, 2s)
//   - POLL_INTERVAL: periodic change detection for serve, 0 disables (default: 0)
//   - INDEX_WORKERS: concurrent directory reads during sync (default: 2 per CPU, at most 8)
//   - MEMORY_LIMIT, MEMORY_RATIO: container limit and heap share for GOMEMLIMIT
//   - LOG_LEVEL, LOG_FILE, LOG_MAX_SIZE_MB, LOG_MAX_BACKUPS, LOG_MAX_AGE_DAYS
//
// Invalid values are logged and replaced by their defaults. Only an unusable
// library or database directory is an error.
package startup
