package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"media-library/internal/logging"
	"media-library/internal/memory"
	"media-library/internal/workers"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	LibraryDir      string
	DatabaseDir     string
	Port            string
	MetricsEnabled  bool
	LogHealthChecks bool

	PreviewCacheSize int
	TimelineFrames   int
	ThumbnailSize    int
	ProbeTimeout     time.Duration
	FFmpegPath       string
	FFprobePath      string
	ExiftoolEnabled  bool
	VipsEnabled      bool

	HistoryDepth  int
	WatchEnabled  bool
	WatchDebounce time.Duration
	PollInterval  time.Duration
	IndexWorkers  int

	MemoryLimit int64
	MemoryRatio float64

	LogFile logging.FileOptions

	// Derived paths
	DatabasePath string
}

// Options adjusts LoadConfig for the calling command.
type Options struct {
	// LibraryDir overrides LIBRARY_DIR when set.
	LibraryDir string
	// Quiet skips the banner and system information.
	Quiet bool
}

// LoadConfig loads and validates configuration from environment variables.
// A .env file in the working directory is read first if present; variables
// already set in the environment win.
func LoadConfig(opts Options) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to read .env file: %v", err)
	}

	if !opts.Quiet {
		printBanner()
		logSystemInfo()
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	libraryDir := getEnv("LIBRARY_DIR", ".")
	if opts.LibraryDir != "" {
		libraryDir = opts.LibraryDir
	}

	cfg := &Config{
		LibraryDir:       libraryDir,
		DatabaseDir:      getEnv("DATABASE_DIR", ""),
		Port:             getEnv("PORT", "8080"),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks:  getEnvBool("LOG_HEALTH_CHECKS", false),
		PreviewCacheSize: getEnvInt("PREVIEW_CACHE_SIZE", 150),
		TimelineFrames:   getEnvInt("TIMELINE_FRAMES", 10),
		ThumbnailSize:    getEnvInt("THUMBNAIL_SIZE", 320),
		ProbeTimeout:     getEnvDuration("PROBE_TIMEOUT", 30*time.Second),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		ExiftoolEnabled:  getEnvBool("EXIFTOOL_ENABLED", true),
		VipsEnabled:      getEnvBool("VIPS_ENABLED", false),
		HistoryDepth:     getEnvInt("HISTORY_DEPTH", 100),
		WatchEnabled:     getEnvBool("WATCH_ENABLED", true),
		WatchDebounce:    getEnvDuration("WATCH_DEBOUNCE", 2*time.Second),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 0),
		IndexWorkers:     workers.Size(workers.Disk, 8),
		MemoryRatio:      getEnvFloat("MEMORY_RATIO", memory.DefaultMemoryRatio),
		LogFile: logging.FileOptions{
			Path:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	if raw := os.Getenv("MEMORY_LIMIT"); raw != "" {
		limit, err := ParseBytes(raw)
		if err != nil {
			logging.Warn("  Invalid MEMORY_LIMIT %q, ignoring: %v", raw, err)
		} else {
			cfg.MemoryLimit = limit
		}
	}

	var err error
	cfg.LibraryDir, err = filepath.Abs(cfg.LibraryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library directory path: %w", err)
	}
	if cfg.DatabaseDir == "" {
		cfg.DatabaseDir = filepath.Join(cfg.LibraryDir, ".medialib")
	}
	cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, "library.db")

	cfg.logSettings()

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.LibraryDir, "library", false); err != nil {
		return nil, fmt.Errorf("library directory error: %w", err)
	}
	if err := ensureDirectory(cfg.DatabaseDir, "database", true); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	return cfg, nil
}

func (c *Config) logSettings() {
	logging.Info("  LIBRARY_DIR:         %s", c.LibraryDir)
	logging.Info("  DATABASE_DIR:        %s", c.DatabaseDir)
	logging.Info("  PORT:                %s", c.Port)
	logging.Info("  METRICS_ENABLED:     %v", c.MetricsEnabled)
	logging.Info("  PREVIEW_CACHE_SIZE:  %d", c.PreviewCacheSize)
	logging.Info("  TIMELINE_FRAMES:     %d", c.TimelineFrames)
	logging.Info("  THUMBNAIL_SIZE:      %d", c.ThumbnailSize)
	logging.Info("  PROBE_TIMEOUT:       %v", c.ProbeTimeout)
	logging.Info("  HISTORY_DEPTH:       %d", c.HistoryDepth)
	logging.Info("  WATCH_ENABLED:       %v", c.WatchEnabled)
	logging.Info("  WATCH_DEBOUNCE:      %v", c.WatchDebounce)
	logging.Info("  INDEX_WORKERS:       %d", c.IndexWorkers)
	logging.Info("  EXIFTOOL_ENABLED:    %v", c.ExiftoolEnabled)
	logging.Info("  VIPS_ENABLED:        %v", c.VipsEnabled)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	if c.LogFile.Path != "" {
		logging.Info("  LOG_FILE:            %s", c.LogFile.Path)
	}
	if c.PollInterval > 0 {
		logging.Info("  POLL_INTERVAL:       %v", c.PollInterval)
	}
	if c.MemoryLimit > 0 {
		logging.Info("  MEMORY_LIMIT:        %s", memory.FormatBytes(c.MemoryLimit))
	}
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, schemaVersion int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v (schema v%d)", duration, schemaVersion)
}

// LogProbeInit logs media tool availability. Missing tools are warnings:
// sync still works, only preview derivation fails.
func LogProbeInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLS")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []string{cfg.FFmpegPath, cfg.FFprobePath} {
		if err := checkTool(tool); err != nil {
			logging.Warn("  %s check failed: %v", tool, err)
			logging.Warn("  Thumbnails and durations may not be available")
		} else {
			logging.Info("  [OK] %s is available", tool)
		}
	}
	if cfg.ExiftoolEnabled {
		if _, err := exec.LookPath("exiftool"); err != nil {
			logging.Info("  exiftool not found, duration fallback disabled")
		} else {
			logging.Info("  [OK] exiftool is available")
		}
	}
}

// LogMemoryConfig logs how the soft memory limit was configured.
func LogMemoryConfig(result memory.LimitResult) {
	switch result.Source {
	case "GOMEMLIMIT":
		logging.Info("  Memory limit: GOMEMLIMIT from environment (%s)", memory.FormatBytes(result.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Memory limit: %s of %s container limit",
			memory.FormatBytes(result.GoMemLimit), memory.FormatBytes(result.ContainerLimit))
	default:
		logging.Debug("  Memory limit: not configured")
	}
}

// LogIndexerInit logs indexer initialization
func LogIndexerInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEXER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if cfg.WatchEnabled {
		logging.Info("  Watching for changes (debounce %v)", cfg.WatchDebounce)
	}
	if cfg.PollInterval > 0 {
		logging.Info("  Polling for changes every %v", cfg.PollInterval)
	}
	logging.Info("  Starting indexer...")
}

// LogIndexerStarted logs successful indexer start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexer started")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level, grouped by
// prefix.
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if !logging.IsDebugEnabled() {
		return
	}

	routes, err := GetRoutes(router)
	if err != nil {
		logging.Warn("error walking routes: %v", err)
	}
	logging.Debug("  Registered routes (%d total):", len(routes))

	groups := make(map[string][]RouteInfo)
	for _, route := range routes {
		prefix := getRouteGroup(route.Path)
		groups[prefix] = append(groups[prefix], route)
	}

	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	for _, group := range groupKeys {
		if group != "" {
			logging.Debug("  [%s]", group)
		} else {
			logging.Debug("  [root]")
		}
		for _, route := range groups[group] {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}
	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Application:     http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("  Metrics:         http://localhost:%s/metrics", config.Port)
	} else {
		logging.Info("  Metrics:         DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

func printBanner() {
	banner := `
------------------------------------------------------------
                     _ _       _ _ _
  _ __ ___   ___  __| (_) __ _| (_) |__
 | '_ ' _ \ / _ \/ _' | |/ _' | | | '_ \
 | | | | | |  __/ (_| | | (_| | | | |_) |
 |_| |_| |_|\___|\__,_|_|\__,_|_|_|_.__/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

// ensureDirectory checks that path is a directory, creating it when create
// is set.
func ensureDirectory(path, name string, create bool) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) && create {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkTool(tool string) error {
	path, err := exec.LookPath(tool)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", tool)
	}
	logging.Debug("  %s path: %s", tool, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", tool, err)
	}
	if first, _, _ := strings.Cut(string(output), "\n"); first != "" {
		logging.Debug("  %s version: %s", tool, strings.TrimSpace(first))
	}
	return nil
}

// ParseBytes parses sizes such as "512Mi", "2G" or "1073741824".
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	units := []struct {
		suffix string
		factor int64
	}{
		{"Ki", 1 << 10}, {"Mi", 1 << 20}, {"Gi", 1 << 30}, {"Ti", 1 << 40},
		{"K", 1000}, {"M", 1000 * 1000}, {"G", 1000 * 1000 * 1000}, {"T", 1000 * 1000 * 1000 * 1000},
	}
	for _, u := range units {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid size %q", s)
			}
			return int64(n * float64(u.factor)), nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Warn("Invalid number for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
