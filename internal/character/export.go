package character

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Export writes the whole collection to w.
func (s *Store) Export(w io.Writer, format string) error {
	chars := s.All()
	switch strings.ToLower(format) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(chars)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(chars); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// Import appends the characters read from r. Imported characters whose id
// is empty or already taken get a fresh id. It returns the number imported.
func (s *Store) Import(ctx context.Context, r io.Reader, format string) (int, error) {
	var incoming []Character
	switch strings.ToLower(format) {
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&incoming); err != nil {
			return 0, fmt.Errorf("failed to decode json: %w", err)
		}
	case FormatYAML, "yml":
		if err := yaml.NewDecoder(r).Decode(&incoming); err != nil {
			return 0, fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		return 0, fmt.Errorf("unknown import format %q", format)
	}

	for _, c := range incoming {
		for _, m := range c.History {
			if !m.Role.Valid() {
				return 0, fmt.Errorf("character %q: invalid message role %q", c.Name, m.Role)
			}
		}
	}

	s.mu.Lock()
	for _, c := range incoming {
		c = c.Clone()
		if c.ID == "" || s.index(c.ID) >= 0 {
			c.ID = s.newID()
		}
		if strings.TrimSpace(c.Name) == "" {
			c.Name = NewCharacterName
		}
		s.chars = append(s.chars, c)
	}
	s.mu.Unlock()

	if len(incoming) == 0 {
		return 0, nil
	}
	if err := s.Save(ctx); err != nil {
		return 0, err
	}
	return len(incoming), nil
}
