// Package session runs conversational turns: it appends the user message,
// streams the reply from the provider, and commits or fails the turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/provider"
	"github.com/maximbilan/chatr/internal/validation"
)

var (
	ErrEmptyInput   = errors.New("message is empty")
	ErrNoCharacter  = errors.New("character not found")
	ErrTurnInFlight = errors.New("a reply is already in progress for this character")
	ErrInputTooLong = errors.New("message too long")
)

// ConfigSource supplies the provider configuration for each turn.
type ConfigSource interface {
	Load(ctx context.Context) (apiconfig.Config, error)
}

// Limiter throttles requests per key.
type Limiter interface {
	Wait(ctx context.Context, key string) error
}

// Controller runs turns. Different characters may have turns in flight at
// the same time; one character has at most one.
type Controller struct {
	chars    *character.Store
	configs  ConfigSource
	streamer provider.Streamer
	limiter  Limiter
	observer Observer
	logger   *zap.Logger

	mu     sync.Mutex
	turns  map[string]*turn
	states map[string]State
}

// turn is the in-flight slot of one character. done is closed on release.
type turn struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimiter throttles turns per provider.
func WithLimiter(l Limiter) Option {
	return func(c *Controller) {
		c.limiter = l
	}
}

// WithObserver sets the sink for turn progress.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the controller's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Controller.
func New(chars *character.Store, configs ConfigSource, streamer provider.Streamer, opts ...Option) *Controller {
	c := &Controller{
		chars:    chars,
		configs:  configs,
		streamer: streamer,
		observer: NopObserver{},
		logger:   zap.NewNop(),
		turns:    make(map[string]*turn),
		states:   make(map[string]State),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the phase of characterID's turn.
func (c *Controller) State(characterID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[characterID]
}

// Cancel aborts the in-flight turn of characterID, if any. The turn ends as
// a failure carrying the context error.
func (c *Controller) Cancel(characterID string) bool {
	c.mu.Lock()
	t, ok := c.turns[characterID]
	c.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// ClearHistory cancels any in-flight turn of characterID, waits for it to
// end and then empties the history. No turn can start while the history is
// being cleared, so a cancelled reply never lands in the cleared history.
func (c *Controller) ClearHistory(ctx context.Context, characterID string) error {
	for {
		if c.claim(characterID, func() {}) {
			break
		}
		c.mu.Lock()
		t, ok := c.turns[characterID]
		c.mu.Unlock()
		if !ok {
			continue
		}
		t.cancel()
		select {
		case <-t.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer c.release(characterID)
	return c.chars.ClearHistory(ctx, characterID)
}

// SendTurn appends text as a user message to the character's history,
// streams the reply and appends it as an assistant message. It blocks until
// the turn ends and returns the committed message; committed is false when
// the reply was empty. The user message stays in the history even when the
// turn fails.
func (c *Controller) SendTurn(ctx context.Context, characterID, text string) (msg character.Message, committed bool, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return msg, false, ErrEmptyInput
	}
	if n := utf8.RuneCountInString(text); n > validation.MaxInputLength {
		return msg, false, fmt.Errorf("%w: %d characters, limit is %d", ErrInputTooLong, n, validation.MaxInputLength)
	}
	if _, ok := c.chars.Get(characterID); !ok {
		return msg, false, fmt.Errorf("%w: %s", ErrNoCharacter, characterID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !c.claim(characterID, cancel) {
		return msg, false, ErrTurnInFlight
	}
	defer c.release(characterID)

	cfg, err := c.configs.Load(ctx)
	if err != nil {
		return msg, false, fmt.Errorf("failed to load API configuration: %w", err)
	}
	if err := apiconfig.Validate(cfg); err != nil {
		return msg, false, err
	}

	c.observer.TurnStarted(characterID)
	c.setState(characterID, Sending)
	if err := c.chars.AppendMessage(characterID, character.Message{Role: character.RoleUser, Content: text}); err != nil {
		return msg, false, c.fail(ctx, characterID, err)
	}

	char, ok := c.chars.Get(characterID)
	if !ok {
		return msg, false, c.fail(ctx, characterID, fmt.Errorf("%w: %s", ErrNoCharacter, characterID))
	}
	req := provider.Request{
		Config:       cfg,
		SystemPrompt: char.SystemPrompt,
		Messages:     make([]provider.Message, 0, len(char.History)),
	}
	for _, m := range char.History {
		req.Messages = append(req.Messages, provider.Message{Role: string(m.Role), Content: m.Content})
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, string(cfg.ActiveProvider())); err != nil {
			return msg, false, c.fail(ctx, characterID, err)
		}
	}

	c.logger.Debug("sending turn",
		zap.String("character", characterID),
		zap.String("provider", string(cfg.ActiveProvider())),
		zap.String("model", cfg.Model),
		zap.Int("history", len(req.Messages)))

	stream, err := c.streamer.Stream(ctx, req)
	if err != nil {
		return msg, false, c.fail(ctx, characterID, err)
	}
	defer stream.Close()

	c.setState(characterID, Streaming)
	var acc strings.Builder
	for stream.Next() {
		acc.WriteString(stream.Delta())
		c.observer.TurnDelta(characterID, acc.String())
	}
	if err := stream.Err(); err != nil {
		return msg, false, c.fail(ctx, characterID, err)
	}

	return c.commit(ctx, characterID, acc.String())
}

func (c *Controller) commit(ctx context.Context, characterID, reply string) (character.Message, bool, error) {
	msg := character.Message{Role: character.RoleAssistant, Content: reply}
	committed := reply != ""
	if committed {
		if err := c.chars.AppendMessage(characterID, msg); err != nil {
			return msg, false, c.fail(ctx, characterID, err)
		}
	}

	saveErr := c.chars.Save(context.WithoutCancel(ctx))
	if saveErr != nil {
		c.logger.Error("failed to persist history", zap.String("character", characterID), zap.Error(saveErr))
		saveErr = fmt.Errorf("failed to persist history: %w", saveErr)
	}

	c.setState(characterID, Committed)
	c.observer.TurnCommitted(characterID, msg, committed)
	c.setState(characterID, Idle)
	c.logger.Info("turn committed",
		zap.String("character", characterID),
		zap.Int("reply_chars", utf8.RuneCountInString(reply)))
	return msg, committed, saveErr
}

// fail ends the turn with err. The user message is persisted regardless.
func (c *Controller) fail(ctx context.Context, characterID string, err error) error {
	if saveErr := c.chars.Save(context.WithoutCancel(ctx)); saveErr != nil {
		c.logger.Error("failed to persist history", zap.String("character", characterID), zap.Error(saveErr))
	}

	c.setState(characterID, Failed)
	c.observer.TurnFailed(characterID, err)
	c.setState(characterID, Idle)
	c.logger.Warn("turn failed", zap.String("character", characterID), zap.Error(err))
	return err
}

func (c *Controller) claim(characterID string, cancel context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.turns[characterID]; busy {
		return false
	}
	c.turns[characterID] = &turn{cancel: cancel, done: make(chan struct{})}
	return true
}

func (c *Controller) release(characterID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.turns[characterID]; ok {
		close(t.done)
		delete(c.turns, characterID)
	}
	delete(c.states, characterID)
}

func (c *Controller) setState(characterID string, s State) {
	c.mu.Lock()
	if s == Idle {
		delete(c.states, characterID)
	} else {
		c.states[characterID] = s
	}
	c.mu.Unlock()
	c.observer.StateChanged(characterID, s)
}
