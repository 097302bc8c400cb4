package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Check that all fields are populated
	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	// Verify that runtime values are correct
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				// Ensure the variable is not set
				os.Unsetenv(tt.key)
				t.Cleanup(func() {
					os.Unsetenv(tt.key)
				})
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	base := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(base, "media"))
	t.Setenv("CACHE_DIR", filepath.Join(base, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "db"))
	t.Setenv("PORT", "8181")
	t.Setenv("SWEEP_INTERVAL", "2h")
	t.Setenv("CACHE_PURGE_INTERVAL", "30m")
	t.Setenv("INDEX_WORKERS", "2")
	t.Setenv("DOWNLOAD_CACHE_BYTES", "1048576")
	t.Setenv("WATCHER_ENABLED", "false")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Port != "8181" {
		t.Errorf("Expected Port=8181, got %s", config.Port)
	}
	if config.SweepInterval != 2*time.Hour {
		t.Errorf("Expected SweepInterval=2h, got %v", config.SweepInterval)
	}
	if config.CachePurgeInterval != 30*time.Minute {
		t.Errorf("Expected CachePurgeInterval=30m, got %v", config.CachePurgeInterval)
	}
	if config.IndexWorkers != 2 {
		t.Errorf("Expected IndexWorkers=2, got %d", config.IndexWorkers)
	}
	if config.DownloadCacheBytes != 1048576 {
		t.Errorf("Expected DownloadCacheBytes=1048576, got %d", config.DownloadCacheBytes)
	}
	if config.WatcherEnabled {
		t.Error("Expected WatcherEnabled=false")
	}

	if config.DatabasePath != filepath.Join(config.DatabaseDir, "index.db") {
		t.Errorf("Unexpected DatabasePath: %s", config.DatabasePath)
	}
	if config.ThumbnailDir != filepath.Join(config.CacheDir, "thumbnails") {
		t.Errorf("Unexpected ThumbnailDir: %s", config.ThumbnailDir)
	}
	if config.DownloadDir != filepath.Join(config.CacheDir, "downloads") {
		t.Errorf("Unexpected DownloadDir: %s", config.DownloadDir)
	}

	// Writable temp dirs mean both optional features come up enabled.
	if !config.ThumbnailsEnabled {
		t.Error("Expected ThumbnailsEnabled=true")
	}
	if !config.DownloadsEnabled {
		t.Error("Expected DownloadsEnabled=true")
	}
}

func TestLoadConfigInvalidDurations(t *testing.T) {
	base := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(base, "media"))
	t.Setenv("CACHE_DIR", filepath.Join(base, "cache"))
	t.Setenv("DATABASE_DIR", filepath.Join(base, "db"))
	t.Setenv("SWEEP_INTERVAL", "whenever")
	t.Setenv("CACHE_PURGE_INTERVAL", "often")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.SweepInterval != time.Hour {
		t.Errorf("Expected default SweepInterval=1h, got %v", config.SweepInterval)
	}
	if config.CachePurgeInterval != time.Hour {
		t.Errorf("Expected default CachePurgeInterval=1h, got %v", config.CachePurgeInterval)
	}
}

func TestRouteInfo(t *testing.T) {
	route := RouteInfo{
		Method: "GET",
		Path:   "/api/test",
		Name:   "TestRoute",
	}

	if route.Method != "GET" {
		t.Errorf("Expected Method=GET, got %s", route.Method)
	}
	if route.Path != "/api/test" {
		t.Errorf("Expected Path=/api/test, got %s", route.Path)
	}
	if route.Name != "TestRoute" {
		t.Errorf("Expected Name=TestRoute, got %s", route.Name)
	}
}
