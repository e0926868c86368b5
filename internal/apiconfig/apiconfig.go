// Package apiconfig persists the provider configuration used for every
// send and decides whether it is complete enough to use.
package apiconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/maximbilan/chatr/internal/kv"
)

// Key is the document key the configuration is stored under.
const Key = "aiChatApiSettings_v3"

// GeminiBaseURL is fixed; it is not user configurable.
const GeminiBaseURL = "https://generativelanguage.googleapis.com"

// Provider selects the wire protocol used for streaming.
type Provider string

const (
	OpenAI Provider = "openai"
	Gemini Provider = "gemini"
)

// ParseProvider accepts the provider names case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToLower(strings.TrimSpace(s))) {
	case OpenAI:
		return OpenAI, nil
	case Gemini:
		return Gemini, nil
	}
	return "", fmt.Errorf("unknown provider %q (want openai or gemini)", s)
}

// DefaultModels are offered before a model list has been fetched.
var DefaultModels = map[Provider]map[string]string{
	OpenAI: {"gpt-3.5-turbo": "GPT-3.5-Turbo"},
	Gemini: {"gemini-pro": "Gemini Pro"},
}

// Config is the persisted provider configuration. Fields belonging to the
// inactive provider are kept but ignored.
type Config struct {
	Provider      Provider `json:"apiType"`
	Model         string   `json:"model"`
	OpenAIBaseURL string   `json:"openaiApiUrl,omitempty"`
	OpenAIAPIKey  string   `json:"openaiApiKey,omitempty"`
	GeminiAPIKey  string   `json:"geminiApiKey,omitempty"`
}

// ActiveProvider returns the provider, treating an unset value as OpenAI.
func (c Config) ActiveProvider() Provider {
	if c.Provider == "" {
		return OpenAI
	}
	return c.Provider
}

// ActiveKey returns the credential of the active provider.
func (c Config) ActiveKey() string {
	if c.ActiveProvider() == Gemini {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// ActiveBaseURL returns the endpoint root of the active provider, without a
// trailing slash.
func (c Config) ActiveBaseURL() string {
	if c.ActiveProvider() == Gemini {
		return GeminiBaseURL
	}
	return strings.TrimRight(c.OpenAIBaseURL, "/")
}

// ErrIncomplete is matched by every IncompleteError.
var ErrIncomplete = errors.New("API configuration incomplete")

// IncompleteError lists the settings that must be filled in before sending.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncomplete, strings.Join(e.Missing, ", "))
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncomplete
}

// Validate returns an *IncompleteError when cfg cannot be used to send.
func Validate(cfg Config) error {
	var missing []string
	if strings.TrimSpace(cfg.Model) == "" {
		missing = append(missing, "model")
	}
	switch cfg.ActiveProvider() {
	case Gemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			missing = append(missing, "gemini api key")
		}
	case OpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			missing = append(missing, "openai api key")
		}
		if strings.TrimSpace(cfg.OpenAIBaseURL) == "" {
			missing = append(missing, "openai base url")
		}
	default:
		missing = append(missing, "provider")
	}
	if len(missing) > 0 {
		return &IncompleteError{Missing: missing}
	}
	return nil
}

// IsComplete reports whether cfg has a model, the active provider's key and,
// for OpenAI, a base URL.
func IsComplete(cfg Config) bool {
	return Validate(cfg) == nil
}

// Store loads and saves the configuration document.
type Store struct {
	kv kv.Store
}

// NewStore returns a Store backed by s.
func NewStore(s kv.Store) *Store {
	return &Store{kv: s}
}

// Load returns the saved configuration, or the zero configuration (OpenAI)
// when nothing has been saved yet.
func (s *Store) Load(ctx context.Context) (Config, error) {
	data, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		return Config{Provider: OpenAI}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to load API settings: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode API settings: %w", err)
	}
	cfg.Provider = cfg.ActiveProvider()
	return cfg, nil
}

// Save overwrites the stored configuration with cfg.
func (s *Store) Save(ctx context.Context, cfg Config) error {
	if _, err := ParseProvider(string(cfg.ActiveProvider())); err != nil {
		return err
	}
	cfg.Provider = cfg.ActiveProvider()
	cfg.OpenAIBaseURL = strings.TrimSpace(cfg.OpenAIBaseURL)
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode API settings: %w", err)
	}
	if err := s.kv.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("failed to save API settings: %w", err)
	}
	return nil
}
