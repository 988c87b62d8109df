package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corewire/assistant/internal/config"
)

func TestRedactAPIKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Chat.Providers = []config.ProviderEntry{{Type: "openai", Model: "gpt-4o", APIKey: "sk-live-secret"}}
	cfg.Models.Embedding = &config.ModelSlot{Providers: []config.ProviderEntry{{Type: "ollama", Model: "nomic-embed-text", APIKey: "em-secret"}}}

	redactAPIKeys(&cfg)

	if got := cfg.Models.Chat.Providers[0].APIKey; got != "********" {
		t.Errorf("chat provider APIKey = %q, want redacted", got)
	}
	if got := cfg.Models.Embedding.Providers[0].APIKey; got != "********" {
		t.Errorf("embedding provider APIKey = %q, want redacted", got)
	}
}

func TestRedactAPIKeysLeavesEmptyKeysAlone(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Chat.Providers = []config.ProviderEntry{{Type: "ollama", Model: "llama3", APIKeyEnv: "NOT_A_SECRET_NAME"}}

	redactAPIKeys(&cfg)

	if got := cfg.Models.Chat.Providers[0].APIKey; got != "" {
		t.Errorf("APIKey = %q, want empty string left untouched", got)
	}
	if got := cfg.Models.Chat.Providers[0].APIKeyEnv; got != "NOT_A_SECRET_NAME" {
		t.Errorf("APIKeyEnv = %q, want untouched", got)
	}
}

func TestHandleGetConfigRedactsKeys(t *testing.T) {
	cfg := config.Default()
	cfg.Models.Chat.Providers = []config.ProviderEntry{{Type: "openai", Model: "gpt-4o", APIKey: "sk-live-secret"}}
	s := newTestServer(t, &cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	s.handleGetConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got config.Config
	decodeJSON(t, rec, &got)
	if got.Models.Chat.Providers[0].APIKey != "********" {
		t.Errorf("response APIKey = %q, want redacted", got.Models.Chat.Providers[0].APIKey)
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"http://localhost:1234/v1/chat/completions", "http://localhost:1234"},
		{"https://api.example.com/v1/", "https://api.example.com"},
		{"http://127.0.0.1:11434", "http://127.0.0.1:11434"},
	}
	for _, tt := range tests {
		got, err := baseURL(tt.endpoint)
		if err != nil {
			t.Fatalf("baseURL(%q): %v", tt.endpoint, err)
		}
		if got != tt.want {
			t.Errorf("baseURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}

func TestDiscoverNativeParsesLMStudioShape(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v0/models" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"llama-3-8b","loaded":true,"context_length":8192}]}`))
	}))
	defer upstream.Close()

	models, err := discoverNative(t.Context(), upstream.URL, "")
	if err != nil {
		t.Fatalf("discoverNative: %v", err)
	}
	if len(models) != 1 || models[0].ID != "llama-3-8b" || !models[0].Loaded || models[0].ContextLength != 8192 {
		t.Fatalf("models = %+v, want one loaded llama-3-8b entry", models)
	}
}

func TestDiscoverOpenAICompatParsesModelsList(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer upstream.Close()

	models, err := discoverOpenAICompat(t.Context(), upstream.URL, "")
	if err != nil {
		t.Fatalf("discoverOpenAICompat: %v", err)
	}
	if len(models) != 2 || models[0].ID != "gpt-4o" || models[1].ID != "gpt-4o-mini" {
		t.Fatalf("models = %+v, want [gpt-4o gpt-4o-mini]", models)
	}
}
