package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ConfigDirPerm is the permission for the config directory (0700 = rwx------)
	ConfigDirPerm os.FileMode = 0700
	// ConfigFilePerm is the permission for the config file (0600 = rw-------)
	ConfigFilePerm os.FileMode = 0600

	dirName = ".chatr"
)

// Config holds application settings. Provider credentials are not kept here;
// they live in the API settings document of the data store.
type Config struct {
	DataDir                  string `mapstructure:"data_dir"`
	StoreBackend             string `mapstructure:"store_backend"`
	RequestTimeoutSeconds    int    `mapstructure:"request_timeout_seconds"`
	StreamIdleTimeoutSeconds int    `mapstructure:"stream_idle_timeout_seconds"`
	RateLimitEnabled         bool   `mapstructure:"rate_limit_enabled"`
	RateLimitRequests        int    `mapstructure:"rate_limit_requests"`
	RateLimitWindow          int    `mapstructure:"rate_limit_window_seconds"`
	ModelCacheEnabled        bool   `mapstructure:"model_cache_enabled"`
	ModelCacheTTLHours       int    `mapstructure:"model_cache_ttl_hours"`
	RenderMarkdown           bool   `mapstructure:"render_markdown"`
	LogLevel                 string `mapstructure:"log_level"`
	LogFile                  string `mapstructure:"log_file"`
}

// Dir returns ~/.chatr.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// File returns the path of config.yaml.
func File() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func setDefaults(configPath string) {
	viper.SetDefault("data_dir", configPath)
	viper.SetDefault("store_backend", "sqlite")
	viper.SetDefault("request_timeout_seconds", 30)
	viper.SetDefault("stream_idle_timeout_seconds", 60)
	viper.SetDefault("rate_limit_enabled", true)
	viper.SetDefault("rate_limit_requests", 20)       // 20 turns
	viper.SetDefault("rate_limit_window_seconds", 60) // per minute
	viper.SetDefault("model_cache_enabled", true)
	viper.SetDefault("model_cache_ttl_hours", 24)
	viper.SetDefault("render_markdown", true)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_file", filepath.Join(configPath, "chatr.log"))
}

func Load() (*Config, error) {
	configPath, err := Dir()
	if err != nil {
		return nil, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.SetEnvPrefix("CHATR")
	viper.AutomaticEnv()
	setDefaults(configPath)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; create directory and fall back to defaults
		if err := os.MkdirAll(configPath, ConfigDirPerm); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.DataDir = expandHome(config.DataDir)
	config.LogFile = expandHome(config.LogFile)

	return &config, nil
}

func Save(cfg *Config) error {
	configPath, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configPath, ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.Set("data_dir", cfg.DataDir)
	viper.Set("store_backend", cfg.StoreBackend)
	viper.Set("request_timeout_seconds", cfg.RequestTimeoutSeconds)
	viper.Set("stream_idle_timeout_seconds", cfg.StreamIdleTimeoutSeconds)
	viper.Set("rate_limit_enabled", cfg.RateLimitEnabled)
	viper.Set("rate_limit_requests", cfg.RateLimitRequests)
	viper.Set("rate_limit_window_seconds", cfg.RateLimitWindow)
	viper.Set("model_cache_enabled", cfg.ModelCacheEnabled)
	viper.Set("model_cache_ttl_hours", cfg.ModelCacheTTLHours)
	viper.Set("render_markdown", cfg.RenderMarkdown)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_file", cfg.LogFile)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(configFile, ConfigFilePerm); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	return nil
}

func Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("config key cannot be empty")
	}

	key = strings.TrimSpace(key)
	if strings.ContainsAny(key, " \t\n\r") {
		return fmt.Errorf("config key contains invalid characters")
	}

	configPath, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configPath, ConfigDirPerm); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)

	// Try to read existing config (ignore error if file doesn't exist)
	_ = viper.ReadInConfig()

	viper.Set(key, value)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Chmod(configFile, ConfigFilePerm); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	return nil
}

func Get(key string) interface{} {
	if key == "" {
		return nil
	}

	configPath, err := Dir()
	if err != nil {
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	setDefaults(configPath)
	_ = viper.ReadInConfig() // Ignore error if config doesn't exist
	return viper.Get(key)
}

// RequestTimeout is the time allowed for a provider to start responding.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// StreamIdleTimeout is the longest silence tolerated mid-stream.
func (c *Config) StreamIdleTimeout() time.Duration {
	if c.StreamIdleTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.StreamIdleTimeoutSeconds) * time.Second
}

// RateLimitWindowDuration returns the rate limit window.
func (c *Config) RateLimitWindowDuration() time.Duration {
	if c.RateLimitWindow <= 0 {
		return time.Minute
	}
	return time.Duration(c.RateLimitWindow) * time.Second
}

// ModelCacheTTL returns how long fetched model lists are reused.
func (c *Config) ModelCacheTTL() time.Duration {
	if c.ModelCacheTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ModelCacheTTLHours) * time.Hour
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
