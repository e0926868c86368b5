package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// MaxInputLength is the maximum allowed length of one user message, in
	// characters.
	MaxInputLength = 100000

	// MaxNameLength bounds character names and subtitles.
	MaxNameLength = 64
)

// ValidateMessage checks a user message before it is sent.
func ValidateMessage(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxInputLength {
		return fmt.Errorf("message exceeds maximum length of %d characters (got %d)", MaxInputLength, n)
	}
	return nil
}

// ValidateBaseURL checks an OpenAI-compatible endpoint root such as
// https://api.openai.com. The /v1/chat/completions path is appended later,
// so the URL must not already carry a query or fragment.
func ValidateBaseURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("base URL is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("base URL has no host")
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("base URL must not contain a query or fragment")
	}
	if strings.HasSuffix(strings.TrimRight(u.Path, "/"), "/v1") {
		return fmt.Errorf("base URL must not end in /v1; it is added automatically")
	}
	return nil
}

// ValidateModelID checks a model identifier. When inPath is set the id is
// placed in the request path (Gemini), so path separators are rejected too.
func ValidateModelID(model string, inPath bool) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("model is required")
	}
	if strings.ContainsAny(model, " \t\n\r") {
		return fmt.Errorf("model %q contains whitespace", model)
	}
	if inPath && strings.ContainsAny(model, "/?#:%") {
		return fmt.Errorf("model %q contains invalid characters", model)
	}
	return nil
}

// ValidateName checks a character name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name exceeds maximum length of %d characters", MaxNameLength)
	}
	return nil
}
