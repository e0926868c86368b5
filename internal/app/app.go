// Package app owns the state shared by every screen: stores, navigation,
// the selected character and the turn controller.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/cache"
	"github.com/maximbilan/chatr/internal/character"
	"github.com/maximbilan/chatr/internal/config"
	"github.com/maximbilan/chatr/internal/kv"
	"github.com/maximbilan/chatr/internal/navigation"
	"github.com/maximbilan/chatr/internal/provider"
	"github.com/maximbilan/chatr/internal/ratelimit"
	"github.com/maximbilan/chatr/internal/session"
)

// Context is created once by the root command and passed by reference.
type Context struct {
	Config     *config.Config
	Logger     *zap.Logger
	KV         kv.Store
	Characters *character.Store
	APIConfig  *apiconfig.Store
	Nav        *navigation.Stack
	Streamer   provider.Streamer
	Models     *provider.ModelLister
	Limiter    *ratelimit.Limiter
	Session    *session.Controller

	relay *relay

	mu       sync.RWMutex
	selected string
}

// Option customizes New.
type Option func(*options)

type options struct {
	streamer   provider.Streamer
	httpClient *http.Client
}

// WithStreamer replaces the HTTP streaming client.
func WithStreamer(s provider.Streamer) Option {
	return func(o *options) {
		o.streamer = s
	}
}

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// New opens the data store under cfg.DataDir, loads the characters and
// wires the controller.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Context, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}

	store, err := kv.Open(cfg.StoreBackend, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	chars := character.NewStore(store, logger.Named("characters"))
	if _, err := chars.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}

	var modelCache *cache.Cache
	if cfg.ModelCacheEnabled {
		modelCache, err = cache.New(cfg.DataDir, cfg.ModelCacheTTL())
		if err != nil {
			logger.Warn("model cache disabled", zap.Error(err))
		}
	}

	streamer := o.streamer
	if streamer == nil {
		streamer = provider.NewClient(
			provider.WithHTTPClient(o.httpClient),
			provider.WithLogger(logger.Named("provider")),
			provider.WithTimeouts(cfg.RequestTimeout(), cfg.StreamIdleTimeout()),
		)
	}

	a := &Context{
		Config:     cfg,
		Logger:     logger,
		KV:         store,
		Characters: chars,
		APIConfig:  apiconfig.NewStore(store),
		Nav:        navigation.New(navigation.Home),
		Streamer:   streamer,
		Models:     provider.NewModelLister(modelCache, logger.Named("models"), o.httpClient),
		relay:      &relay{},
	}

	sessionOpts := []session.Option{
		session.WithObserver(a.relay),
		session.WithLogger(logger.Named("session")),
	}
	if cfg.RateLimitEnabled {
		a.Limiter = ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindowDuration(), 0)
		sessionOpts = append(sessionOpts, session.WithLimiter(a.Limiter))
	}
	a.Session = session.New(chars, a.APIConfig, streamer, sessionOpts...)

	if all := chars.All(); len(all) > 0 {
		a.selected = all[0].ID
	}
	return a, nil
}

// SetObserver routes turn progress to o. Passing nil silences it.
func (a *Context) SetObserver(o session.Observer) {
	a.relay.set(o)
}

// Select makes id the current character.
func (a *Context) Select(id string) error {
	if _, ok := a.Characters.Get(id); !ok {
		return &character.NotFoundError{ID: id}
	}
	a.mu.Lock()
	a.selected = id
	a.mu.Unlock()
	return nil
}

// Selected returns the current character. After the selected character is
// deleted the first remaining one is selected.
func (a *Context) Selected() (character.Character, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.Characters.Get(a.selected); ok {
		return c, true
	}
	all := a.Characters.All()
	if len(all) == 0 {
		a.selected = ""
		return character.Character{}, false
	}
	a.selected = all[0].ID
	return all[0], true
}

// Close releases the data store.
func (a *Context) Close() error {
	return a.KV.Close()
}

// relay forwards to an observer that can be swapped after the controller is
// built, so the UI can attach once its program exists.
type relay struct {
	mu sync.RWMutex
	o  session.Observer
}

func (r *relay) set(o session.Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.o = o
}

func (r *relay) get() session.Observer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.o == nil {
		return session.NopObserver{}
	}
	return r.o
}

func (r *relay) TurnStarted(id string) {
	r.get().TurnStarted(id)
}

func (r *relay) TurnDelta(id, accumulated string) {
	r.get().TurnDelta(id, accumulated)
}

func (r *relay) TurnCommitted(id string, msg character.Message, committed bool) {
	r.get().TurnCommitted(id, msg, committed)
}

func (r *relay) TurnFailed(id string, err error) {
	r.get().TurnFailed(id, err)
}

func (r *relay) StateChanged(id string, state session.State) {
	r.get().StateChanged(id, state)
}
