package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/maximbilan/chatr/internal/kv"
	"go.uber.org/zap"
)

// Key is the document key the collection is stored under.
const Key = "aiChatCharacters_v3"

// Store owns the in-memory character collection and writes it back to the
// key-value store in full on every Save.
type Store struct {
	mu     sync.RWMutex
	saveMu sync.Mutex
	kv     kv.Store
	logger *zap.Logger
	chars  []Character
	newID  func() string
}

// NewStore returns an empty store. Call Load before use.
func NewStore(backend kv.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:     backend,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
}

// Load reads the persisted collection into memory. When nothing has been
// stored yet a default character is created and persisted first.
func (s *Store) Load(ctx context.Context) ([]Character, error) {
	data, err := s.kv.Get(ctx, Key)
	if errors.Is(err, kv.ErrNotFound) {
		s.mu.Lock()
		s.chars = []Character{seedCharacter(s.newID())}
		s.mu.Unlock()
		s.logger.Info("seeded default character")
		if err := s.Save(ctx); err != nil {
			return nil, err
		}
		return s.All(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load characters: %w", err)
	}

	var chars []Character
	if err := json.Unmarshal(data, &chars); err != nil {
		return nil, fmt.Errorf("failed to decode characters: %w", err)
	}
	if err := checkIDs(chars); err != nil {
		return nil, fmt.Errorf("failed to load characters: %w", err)
	}
	for i := range chars {
		if chars[i].History == nil {
			chars[i].History = []Message{}
		}
	}

	s.mu.Lock()
	s.chars = chars
	s.mu.Unlock()
	s.logger.Debug("loaded characters", zap.Int("count", len(chars)))
	return s.All(), nil
}

// Save overwrites the persisted document with the whole in-memory
// collection.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := json.Marshal(s.chars)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode characters: %w", err)
	}

	if err := s.kv.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("failed to save characters: %w", err)
	}
	return nil
}

// Replace swaps the in-memory collection for chars and saves it.
func (s *Store) Replace(ctx context.Context, chars []Character) error {
	if err := checkIDs(chars); err != nil {
		return err
	}
	next := make([]Character, 0, len(chars))
	for _, c := range chars {
		next = append(next, c.Clone())
	}

	s.mu.Lock()
	s.chars = next
	s.mu.Unlock()
	return s.Save(ctx)
}

// checkIDs reports a missing or repeated id.
func checkIDs(chars []Character) error {
	seen := make(map[string]bool, len(chars))
	for _, c := range chars {
		if c.ID == "" {
			return fmt.Errorf("character %q has no id", c.Name)
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate character id %q", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// All returns copies of every character in collection order.
func (s *Store) All() []Character {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Character, len(s.chars))
	for i, c := range s.chars {
		out[i] = c.Clone()
	}
	return out
}

// Get returns a copy of the character with id.
func (s *Store) Get(id string) (Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.index(id); i >= 0 {
		return s.chars[i].Clone(), true
	}
	return Character{}, false
}

// index must be called with mu held.
func (s *Store) index(id string) int {
	return slices.IndexFunc(s.chars, func(c Character) bool { return c.ID == id })
}

// Create appends a new character with a fresh id and saves.
func (s *Store) Create(ctx context.Context, d Draft) (Character, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		name = NewCharacterName
	}
	c := Character{
		ID:           s.newID(),
		Name:         name,
		Subtitle:     strings.TrimSpace(d.Subtitle),
		SystemPrompt: strings.TrimSpace(d.SystemPrompt),
		Avatar:       d.Avatar,
		History:      []Message{},
	}

	s.mu.Lock()
	for s.index(c.ID) >= 0 {
		c.ID = s.newID()
	}
	s.chars = append(s.chars, c)
	s.mu.Unlock()

	if err := s.Save(ctx); err != nil {
		return Character{}, err
	}
	s.logger.Info("created character", zap.String("id", c.ID), zap.String("name", c.Name))
	return c.Clone(), nil
}

// Update applies p to the character with id and saves.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Character, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return Character{}, &NotFoundError{ID: id}
	}
	p.apply(&s.chars[i])
	updated := s.chars[i].Clone()
	s.mu.Unlock()

	if err := s.Save(ctx); err != nil {
		return Character{}, err
	}
	return updated, nil
}

// Delete removes the characters with the given ids, histories included,
// and saves. It returns how many were removed; unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, ids ...string) (int, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	s.mu.Lock()
	before := len(s.chars)
	s.chars = slices.DeleteFunc(s.chars, func(c Character) bool { return drop[c.ID] })
	removed := before - len(s.chars)
	s.mu.Unlock()

	if removed == 0 {
		return 0, nil
	}
	if err := s.Save(ctx); err != nil {
		return 0, err
	}
	s.logger.Info("deleted characters", zap.Int("count", removed))
	return removed, nil
}

// AppendMessage adds msg to the end of a character's history in memory.
// Callers persist with Save.
func (s *Store) AppendMessage(id string, msg Message) error {
	if !msg.Role.Valid() {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	// Grow through a fresh backing array so earlier Clone results stay intact.
	s.chars[i].History = append(slices.Clip(s.chars[i].History), msg)
	return nil
}

// ClearHistory replaces a character's history with an empty one and saves.
func (s *Store) ClearHistory(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	s.chars[i].History = []Message{}
	s.mu.Unlock()

	return s.Save(ctx)
}
