package provider

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/cache"
)

// ModelLister fetches the model ids a provider offers. Results are cached
// per provider, endpoint and key when a cache is set.
type ModelLister struct {
	cache         *cache.Cache
	logger        *zap.Logger
	httpClient    *http.Client
	geminiBaseURL string
}

// NewModelLister creates a lister. c may be nil to disable caching.
func NewModelLister(c *cache.Cache, logger *zap.Logger, httpClient *http.Client) *ModelLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ModelLister{
		cache:         c,
		logger:        logger,
		httpClient:    httpClient,
		geminiBaseURL: apiconfig.GeminiBaseURL,
	}
}

// List returns the sorted model ids of the active provider of cfg. With
// refresh set, the cache is bypassed and overwritten.
func (l *ModelLister) List(ctx context.Context, cfg apiconfig.Config, refresh bool) ([]string, error) {
	provider := cfg.ActiveProvider()
	key := cfg.ActiveKey()
	if strings.TrimSpace(key) == "" {
		return nil, &apiconfig.IncompleteError{Missing: []string{string(provider) + " api key"}}
	}
	endpoint := cfg.ActiveBaseURL()
	if provider == apiconfig.OpenAI && endpoint == "" {
		return nil, &apiconfig.IncompleteError{Missing: []string{"openai base url"}}
	}

	var cacheKey string
	if l.cache != nil {
		cacheKey = l.cache.Key(string(provider), endpoint, key)
		if !refresh {
			if models := l.cache.Get(cacheKey); models != nil {
				l.logger.Debug("model list served from cache", zap.String("provider", string(provider)))
				return models, nil
			}
		}
	}

	var (
		models []string
		err    error
	)
	switch provider {
	case apiconfig.OpenAI:
		models, err = l.listOpenAI(ctx, endpoint, key)
	case apiconfig.Gemini:
		models, err = l.listGemini(ctx, key)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", provider, err)
	}
	slices.Sort(models)

	if l.cache != nil {
		if err := l.cache.Set(cacheKey, string(provider), endpoint, models); err != nil {
			l.logger.Warn("failed to cache model list", zap.Error(err))
		}
	}
	return models, nil
}

// ListAll lists every provider cfg holds a key for, concurrently. Providers
// without a key are left out of the result.
func (l *ModelLister) ListAll(ctx context.Context, cfg apiconfig.Config, refresh bool) (map[apiconfig.Provider][]string, error) {
	var (
		openaiModels []string
		geminiModels []string
	)
	g, ctx := errgroup.WithContext(ctx)
	if cfg.OpenAIAPIKey != "" && cfg.OpenAIBaseURL != "" {
		c := cfg
		c.Provider = apiconfig.OpenAI
		g.Go(func() error {
			models, err := l.List(ctx, c, refresh)
			openaiModels = models
			return err
		})
	}
	if cfg.GeminiAPIKey != "" {
		c := cfg
		c.Provider = apiconfig.Gemini
		g.Go(func() error {
			models, err := l.List(ctx, c, refresh)
			geminiModels = models
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[apiconfig.Provider][]string)
	if openaiModels != nil {
		out[apiconfig.OpenAI] = openaiModels
	}
	if geminiModels != nil {
		out[apiconfig.Gemini] = geminiModels
	}
	return out, nil
}

func (l *ModelLister) listOpenAI(ctx context.Context, endpoint, key string) ([]string, error) {
	oc := openai.DefaultConfig(key)
	oc.BaseURL = endpoint + "/v1"
	oc.HTTPClient = l.httpClient
	client := openai.NewClientWithConfig(oc)

	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, m.ID)
	}
	return models, nil
}

func (l *ModelLister) listGemini(ctx context.Context, key string) ([]string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  l.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: l.geminiBaseURL + "/"},
	})
	if err != nil {
		return nil, err
	}

	var models []string
	for m, err := range client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if len(m.SupportedActions) > 0 && !slices.Contains(m.SupportedActions, "generateContent") {
			continue
		}
		models = append(models, strings.TrimPrefix(m.Name, "models/"))
	}
	return models, nil
}
