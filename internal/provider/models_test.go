package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/maximbilan/chatr/internal/apiconfig"
	"github.com/maximbilan/chatr/internal/cache"
)

type modelServer struct {
	*httptest.Server
	openaiHits atomic.Int32
	geminiHits atomic.Int32
}

func newModelServer(t *testing.T) *modelServer {
	t.Helper()
	s := &modelServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			s.openaiHits.Add(1)
			if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
				http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
				return
			}
			io.WriteString(w, `{"object":"list","data":[{"id":"gpt-b","object":"model"},{"id":"gpt-a","object":"model"}]}`)
		case "/v1beta/models":
			s.geminiHits.Add(1)
			io.WriteString(w, `{"models":[
				{"name":"models/gemini-x","supportedGenerationMethods":["generateContent","countTokens"]},
				{"name":"models/embedding-001","supportedGenerationMethods":["embedContent"]}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestLister(t *testing.T, srv *modelServer, withCache bool) *ModelLister {
	t.Helper()
	var c *cache.Cache
	if withCache {
		var err error
		c, err = cache.New(t.TempDir(), time.Hour)
		if err != nil {
			t.Fatalf("cache.New() error = %v", err)
		}
	}
	l := NewModelLister(c, nil, srv.Client())
	l.geminiBaseURL = srv.URL
	return l
}

func TestModelListerOpenAI(t *testing.T) {
	srv := newModelServer(t)
	l := newTestLister(t, srv, false)

	got, err := l.List(context.Background(), apiconfig.Config{
		Provider:      apiconfig.OpenAI,
		OpenAIBaseURL: srv.URL,
		OpenAIAPIKey:  "sk-test",
	}, false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"gpt-a", "gpt-b"}, got); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}

func TestModelListerGeminiFiltersGenerateContent(t *testing.T) {
	srv := newModelServer(t)
	l := newTestLister(t, srv, false)

	got, err := l.List(context.Background(), apiconfig.Config{
		Provider:     apiconfig.Gemini,
		GeminiAPIKey: "g-test",
	}, false)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if diff := cmp.Diff([]string{"gemini-x"}, got); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}

func TestModelListerCache(t *testing.T) {
	srv := newModelServer(t)
	l := newTestLister(t, srv, true)
	cfg := apiconfig.Config{
		Provider:      apiconfig.OpenAI,
		OpenAIBaseURL: srv.URL,
		OpenAIAPIKey:  "sk-test",
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.List(ctx, cfg, false); err != nil {
			t.Fatalf("List() error = %v", err)
		}
	}
	if got := srv.openaiHits.Load(); got != 1 {
		t.Fatalf("requests after cached list = %d, want 1", got)
	}

	got, err := l.List(ctx, cfg, true)
	if err != nil {
		t.Fatalf("List(refresh) error = %v", err)
	}
	if n := srv.openaiHits.Load(); n != 2 {
		t.Fatalf("requests after refresh = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"gpt-a", "gpt-b"}, got); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}
}

func TestModelListerErrors(t *testing.T) {
	srv := newModelServer(t)
	l := newTestLister(t, srv, false)
	ctx := context.Background()

	_, err := l.List(ctx, apiconfig.Config{Provider: apiconfig.Gemini}, false)
	if !errors.Is(err, apiconfig.ErrIncomplete) {
		t.Errorf("List(no key) error = %v, want ErrIncomplete", err)
	}

	_, err = l.List(ctx, apiconfig.Config{Provider: apiconfig.OpenAI, OpenAIAPIKey: "sk-test"}, false)
	if !errors.Is(err, apiconfig.ErrIncomplete) {
		t.Errorf("List(no base url) error = %v, want ErrIncomplete", err)
	}

	_, err = l.List(ctx, apiconfig.Config{
		Provider:      apiconfig.OpenAI,
		OpenAIBaseURL: srv.URL,
		OpenAIAPIKey:  "sk-wrong",
	}, false)
	if err == nil {
		t.Error("List(bad key) error = nil, want error")
	}
}

func TestModelListerListAll(t *testing.T) {
	srv := newModelServer(t)

	tests := []struct {
		name string
		cfg  apiconfig.Config
		want map[apiconfig.Provider][]string
	}{
		{
			name: "both providers",
			cfg: apiconfig.Config{
				OpenAIBaseURL: srv.URL,
				OpenAIAPIKey:  "sk-test",
				GeminiAPIKey:  "g-test",
			},
			want: map[apiconfig.Provider][]string{
				apiconfig.OpenAI: {"gpt-a", "gpt-b"},
				apiconfig.Gemini: {"gemini-x"},
			},
		},
		{
			name: "gemini only",
			cfg:  apiconfig.Config{Provider: apiconfig.OpenAI, GeminiAPIKey: "g-test"},
			want: map[apiconfig.Provider][]string{
				apiconfig.Gemini: {"gemini-x"},
			},
		},
		{
			name: "no keys",
			cfg:  apiconfig.Config{},
			want: map[apiconfig.Provider][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLister(t, srv, false)
			got, err := l.ListAll(context.Background(), tt.cfg, false)
			if err != nil {
				t.Fatalf("ListAll() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("models mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
