package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/corewire/assistant/internal/sharedstate"
)

type failingEmbedder struct{ *fakeEmbedder }

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("connection refused")
}

func TestHandleEmbedderHealthNoProvider(t *testing.T) {
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{}, "")
	s := New(nil, holder, nil, nil, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/embedder/health", nil)
	rec := httptest.NewRecorder()
	s.handleEmbedderHealth(rec, req)

	var resp embedderHealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Active {
		t.Error("Active = true, want false with no embedder configured")
	}
	if resp.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", resp.Status)
	}
}

func TestHandleEmbedderHealthHealthy(t *testing.T) {
	emb := &fakeEmbedder{model: "fake-small", dim: 4}
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{EmbeddingProvider: emb}, "")
	s := New(nil, holder, nil, nil, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/embedder/health", nil)
	rec := httptest.NewRecorder()
	s.handleEmbedderHealth(rec, req)

	var resp embedderHealthResponse
	decodeJSON(t, rec, &resp)
	if !resp.Active || resp.Status != "healthy" {
		t.Errorf("resp = %+v, want active healthy", resp)
	}
	if resp.ModelName != "fake-small" || resp.Dimensions != 4 {
		t.Errorf("resp model/dim = %q/%d, want fake-small/4", resp.ModelName, resp.Dimensions)
	}
}

func TestHandleEmbedderHealthUnhealthyOnError(t *testing.T) {
	emb := &failingEmbedder{&fakeEmbedder{model: "fake-small", dim: 4}}
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{EmbeddingProvider: emb}, "")
	s := New(nil, holder, nil, nil, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/embedder/health", nil)
	rec := httptest.NewRecorder()
	s.handleEmbedderHealth(rec, req)

	var resp embedderHealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", resp.Status)
	}
	if resp.Message == "" {
		t.Error("Message is empty, want the underlying error surfaced")
	}
}
