package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OllamaEmbedder implements Embedder against a local Ollama server.
// Ollama's /api/embeddings endpoint has no native batch form, so
// EmbedBatch issues one request per text, serialized by mu per the
// "implementation is free to serialize concurrent embed calls
// internally" allowance.
type OllamaEmbedder struct {
	client  *http.Client
	baseURL string
	model   string
	dim     int
	mu      sync.Mutex
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllama creates an Ollama embedding provider. dim is the known
// output dimension for the configured model (Ollama does not report it
// out of band).
func NewOllama(cfg OllamaConfig, dim int) *OllamaEmbedder {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		model:   model,
		dim:     dim,
	}
}

// ProviderType identifies this backend.
func (p *OllamaEmbedder) ProviderType() string { return "ollama" }

// ModelName returns the configured embedding model.
func (p *OllamaEmbedder) ModelName() string { return p.model }

// Dimension returns the configured embedding length.
func (p *OllamaEmbedder) Dimension() int { return p.dim }

// MaxBatchSize is 1: Ollama embeds one text per request.
func (p *OllamaEmbedder) MaxBatchSize() int { return 1 }

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (p *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedder: ollama: status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedder: ollama: decode response: %w", err)
	}
	return out.Embedding, nil
}

// EmbedBatch loops Embed over every text.
func (p *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
