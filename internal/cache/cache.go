// Package cache remembers provider model lists on disk so the settings
// screen does not hit the network every time it opens.
package cache

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// CacheDirPerm is the permission for the cache directory (0700 = rwx------)
	CacheDirPerm os.FileMode = 0700
	// CacheFilePerm is the permission for cache files (0600 = rw-------)
	CacheFilePerm os.FileMode = 0600
)

type Cache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

type CacheEntry struct {
	Hash      string   `json:"hash"`
	Provider  string   `json:"provider"`
	Endpoint  string   `json:"endpoint"`
	Models    []string `json:"models"`
	Timestamp int64    `json:"timestamp"`
}

// New creates a cache under <dataDir>/cache whose entries expire after ttl.
func New(dataDir string, ttl time.Duration) (*Cache, error) {
	if ttl < 0 {
		return nil, fmt.Errorf("cache TTL must be non-negative, got %v", ttl)
	}
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}

	cacheDir := filepath.Join(dataDir, "cache")
	if err := os.MkdirAll(cacheDir, CacheDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	abs, err := filepath.Abs(cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory: %w", err)
	}

	return &Cache{
		dir: abs,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Key identifies the model list of one provider endpoint. The API key is
// folded into the hash so switching accounts does not reuse a stale list.
func (c *Cache) Key(provider, endpoint, apiKey string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(provider+"\x00"+endpoint+"\x00"+apiKey)))
}

// Get returns the cached models for key, or nil if missing or expired.
func (c *Cache) Get(key string) []string {
	path, ok := c.path(key)
	if !ok {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}

	if c.now().Sub(time.Unix(entry.Timestamp, 0)) > c.ttl {
		_ = os.Remove(path) // Ignore error on removal
		return nil
	}

	return entry.Models
}

// Set stores models under key.
func (c *Cache) Set(key, provider, endpoint string, models []string) error {
	path, ok := c.path(key)
	if !ok {
		return fmt.Errorf("invalid cache key")
	}

	entry := CacheEntry{
		Hash:      key,
		Provider:  provider,
		Endpoint:  endpoint,
		Models:    models,
		Timestamp: c.now().Unix(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := os.WriteFile(path, data, CacheFilePerm); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	return nil
}

// Invalidate drops the entry for key.
func (c *Cache) Invalidate(key string) {
	if path, ok := c.path(key); ok {
		_ = os.Remove(path)
	}
}

func (c *Cache) path(key string) (string, bool) {
	if !isValidHash(key) {
		return "", false
	}
	path := filepath.Clean(filepath.Join(c.dir, key+".json"))
	if !strings.HasPrefix(path, c.dir+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

// isValidHash validates that the key is a SHA256 hex string (64 characters)
func isValidHash(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for _, r := range hash {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}
