package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func withHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	originalHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	viper.Reset()
	t.Cleanup(func() {
		os.Setenv("HOME", originalHome)
		viper.Reset()
	})
	return tmpDir
}

func TestLoad(t *testing.T) {
	tmpDir := withHome(t)

	t.Run("load with defaults when config file doesn't exist", func(t *testing.T) {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		configPath := filepath.Join(tmpDir, ".chatr")
		if cfg.DataDir != configPath {
			t.Errorf("Load() DataDir = %v, want %v", cfg.DataDir, configPath)
		}
		if cfg.StoreBackend != "sqlite" {
			t.Errorf("Load() StoreBackend = %v, want sqlite", cfg.StoreBackend)
		}
		if cfg.RequestTimeoutSeconds != 30 {
			t.Errorf("Load() RequestTimeoutSeconds = %v, want 30", cfg.RequestTimeoutSeconds)
		}
		if cfg.StreamIdleTimeoutSeconds != 60 {
			t.Errorf("Load() StreamIdleTimeoutSeconds = %v, want 60", cfg.StreamIdleTimeoutSeconds)
		}
		if !cfg.RateLimitEnabled || cfg.RateLimitRequests != 20 {
			t.Errorf("Load() rate limit = %v/%v, want true/20", cfg.RateLimitEnabled, cfg.RateLimitRequests)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("Load() LogLevel = %v, want info", cfg.LogLevel)
		}
		if cfg.LogFile != filepath.Join(configPath, "chatr.log") {
			t.Errorf("Load() LogFile = %v", cfg.LogFile)
		}

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Errorf("Load() config directory was not created: %v", configPath)
		}
	})

	t.Run("load existing config file", func(t *testing.T) {
		viper.Reset()
		configPath := filepath.Join(tmpDir, ".chatr")
		if err := os.MkdirAll(configPath, 0755); err != nil {
			t.Fatalf("Failed to create config directory: %v", err)
		}

		configContent := `store_backend: file
data_dir: ~/chatr-data
stream_idle_timeout_seconds: 5
rate_limit_enabled: false
render_markdown: false
log_level: debug
`
		if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}
		if cfg.StoreBackend != "file" {
			t.Errorf("Load() StoreBackend = %v, want file", cfg.StoreBackend)
		}
		if cfg.DataDir != filepath.Join(tmpDir, "chatr-data") {
			t.Errorf("Load() DataDir = %v, want expanded home path", cfg.DataDir)
		}
		if cfg.StreamIdleTimeout() != 5*time.Second {
			t.Errorf("StreamIdleTimeout() = %v, want 5s", cfg.StreamIdleTimeout())
		}
		if cfg.RateLimitEnabled || cfg.RenderMarkdown {
			t.Errorf("Load() booleans not read from file: %+v", cfg)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Load() LogLevel = %v, want debug", cfg.LogLevel)
		}
	})
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := withHome(t)

	configPath := filepath.Join(tmpDir, ".chatr")
	if err := os.MkdirAll(configPath, 0755); err != nil {
		t.Fatalf("Failed to create config directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte(`invalid: yaml: content: [unclosed`), 0644); err != nil {
		t.Fatalf("Failed to write invalid config file: %v", err)
	}

	if _, err := Load(); err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

func TestSaveAndSetPermissions(t *testing.T) {
	tmpDir := withHome(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.StoreBackend = "file"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	configDir := filepath.Join(tmpDir, ".chatr")
	configFile := filepath.Join(configDir, "config.yaml")

	dirInfo, err := os.Stat(configDir)
	if err != nil {
		t.Fatalf("failed to stat config directory: %v", err)
	}
	if dirInfo.Mode().Perm()&0077 != 0 {
		t.Fatalf("config directory should not be accessible by group/others, got mode %o", dirInfo.Mode().Perm())
	}

	fileInfo, err := os.Stat(configFile)
	if err != nil {
		t.Fatalf("failed to stat config file: %v", err)
	}
	if fileInfo.Mode().Perm()&0077 != 0 {
		t.Fatalf("config file should not be accessible by group/others, got mode %o", fileInfo.Mode().Perm())
	}

	if err := Set("request_timeout_seconds", "45"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	viper.Reset()
	reloaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.StoreBackend != "file" {
		t.Errorf("StoreBackend = %v, want file", reloaded.StoreBackend)
	}
	if reloaded.RequestTimeout() != 45*time.Second {
		t.Errorf("RequestTimeout() = %v, want 45s", reloaded.RequestTimeout())
	}
}

func TestSetRejectsInvalidKeys(t *testing.T) {
	withHome(t)

	tests := []struct {
		name string
		key  string
	}{
		{name: "empty key", key: ""},
		{name: "key with space", key: "log level"},
		{name: "key with tab", key: "log\tlevel"},
		{name: "key with newline", key: "log\nlevel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Set(tt.key, "x"); err == nil {
				t.Fatalf("Set(%q) expected error, got nil", tt.key)
			}
		})
	}
}

func TestGetReturnsDefaults(t *testing.T) {
	withHome(t)

	if got := Get("store_backend"); got != "sqlite" {
		t.Errorf("Get(store_backend) = %v, want sqlite", got)
	}
	if got := Get(""); got != nil {
		t.Errorf("Get(\"\") = %v, want nil", got)
	}
}

func TestDurationFallbacks(t *testing.T) {
	var cfg Config
	if cfg.RequestTimeout() != 30*time.Second {
		t.Errorf("RequestTimeout() = %v", cfg.RequestTimeout())
	}
	if cfg.StreamIdleTimeout() != time.Minute {
		t.Errorf("StreamIdleTimeout() = %v", cfg.StreamIdleTimeout())
	}
	if cfg.RateLimitWindowDuration() != time.Minute {
		t.Errorf("RateLimitWindowDuration() = %v", cfg.RateLimitWindowDuration())
	}
	if cfg.ModelCacheTTL() != 24*time.Hour {
		t.Errorf("ModelCacheTTL() = %v", cfg.ModelCacheTTL())
	}
}
