package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()
	if info.Version != Version {
		t.Errorf("Version = %s, want %s", info.Version, Version)
	}
	if info.OS != runtime.GOOS || info.Arch != runtime.GOARCH {
		t.Errorf("OS/Arch = %s/%s, want %s/%s", info.OS, info.Arch, runtime.GOOS, runtime.GOARCH)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	lib := t.TempDir()
	t.Setenv("LIBRARY_DIR", lib)
	t.Setenv("DATABASE_DIR", "")
	t.Setenv("PREVIEW_CACHE_SIZE", "")
	t.Setenv("PROBE_TIMEOUT", "")

	cfg, err := LoadConfig(Options{Quiet: true})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LibraryDir != lib {
		t.Errorf("LibraryDir = %s, want %s", cfg.LibraryDir, lib)
	}
	if want := filepath.Join(lib, ".medialib", "library.db"); cfg.DatabasePath != want {
		t.Errorf("DatabasePath = %s, want %s", cfg.DatabasePath, want)
	}
	if cfg.PreviewCacheSize != 150 || cfg.TimelineFrames != 10 || cfg.ThumbnailSize != 320 {
		t.Errorf("sizes = %d/%d/%d, want 150/10/320", cfg.PreviewCacheSize, cfg.TimelineFrames, cfg.ThumbnailSize)
	}
	if cfg.ProbeTimeout != 30*time.Second {
		t.Errorf("ProbeTimeout = %v, want 30s", cfg.ProbeTimeout)
	}
	if _, err := os.Stat(filepath.Join(lib, ".medialib")); err != nil {
		t.Errorf("database directory not created: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	lib := t.TempDir()
	db := filepath.Join(t.TempDir(), "store")
	t.Setenv("LIBRARY_DIR", "/does/not/matter")
	t.Setenv("DATABASE_DIR", db)
	t.Setenv("PREVIEW_CACHE_SIZE", "20")
	t.Setenv("PROBE_TIMEOUT", "5s")
	t.Setenv("HISTORY_DEPTH", "bogus")
	t.Setenv("MEMORY_LIMIT", "1Gi")

	cfg, err := LoadConfig(Options{LibraryDir: lib, Quiet: true})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.LibraryDir != lib {
		t.Errorf("LibraryDir = %s, want flag value %s", cfg.LibraryDir, lib)
	}
	if cfg.DatabaseDir != db {
		t.Errorf("DatabaseDir = %s, want %s", cfg.DatabaseDir, db)
	}
	if cfg.PreviewCacheSize != 20 || cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("PreviewCacheSize = %d, ProbeTimeout = %v", cfg.PreviewCacheSize, cfg.ProbeTimeout)
	}
	if cfg.HistoryDepth != 100 {
		t.Errorf("HistoryDepth = %d, want default 100 for invalid value", cfg.HistoryDepth)
	}
	if cfg.MemoryLimit != 1<<30 {
		t.Errorf("MemoryLimit = %d, want %d", cfg.MemoryLimit, 1<<30)
	}
}

func TestLoadConfigMissingLibrary(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := LoadConfig(Options{LibraryDir: filepath.Join(t.TempDir(), "missing"), Quiet: true}); err == nil {
		t.Error("LoadConfig error = nil, want missing library error")
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TIMELINE_FRAMES", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TIMELINE_FRAMES=4\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	// godotenv never overrides a variable that is set, even to "".
	os.Unsetenv("TIMELINE_FRAMES")

	cfg, err := LoadConfig(Options{LibraryDir: t.TempDir(), Quiet: true})
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.TimelineFrames != 4 {
		t.Errorf("TimelineFrames = %d, want 4 from .env", cfg.TimelineFrames)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_BOOL", "yes-please")
	t.Setenv("TEST_INT", "-4")
	t.Setenv("TEST_DUR", "90s")
	t.Setenv("TEST_FLOAT", "0.5")

	if got := getEnv("TEST_STR", "d"); got != "value" {
		t.Errorf("getEnv = %s, want value", got)
	}
	if got := getEnv("TEST_UNSET_STR", "d"); got != "d" {
		t.Errorf("getEnv = %s, want d", got)
	}
	if got := getEnvBool("TEST_BOOL", true); !got {
		t.Error("getEnvBool with invalid value = false, want default true")
	}
	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt with negative value = %d, want default 7", got)
	}
	if got := getEnvDuration("TEST_DUR", time.Second); got != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want 90s", got)
	}
	if got := getEnvFloat("TEST_FLOAT", 1); got != 0.5 {
		t.Errorf("getEnvFloat = %v, want 0.5", got)
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"512Mi", 512 << 20, false},
		{"2Gi", 2 << 30, false},
		{"1.5G", 1500000000, false},
		{"10K", 10000, false},
		{"", 0, true},
		{"lots", 0, true},
		{"-1Gi", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBytes(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBytes(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestGetRoutes(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/records", func(_ http.ResponseWriter, _ *http.Request) {}).Methods("GET").Name("records")
	r.HandleFunc("/health", func(_ http.ResponseWriter, _ *http.Request) {})

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(routes))
	}
	if routes[0] != (RouteInfo{Method: "GET", Path: "/api/records", Name: "records"}) {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[1].Method != "*" {
		t.Errorf("routes[1].Method = %s, want *", routes[1].Method)
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := map[string]string{
		"/api/records/{id}": "api/records",
		"/api":              "api",
		"/health":           "health",
		"/":                 "",
	}
	for in, want := range tests {
		if got := getRouteGroup(in); got != want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", in, got, want)
		}
	}
}
