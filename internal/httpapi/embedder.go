package httpapi

import (
	"context"
	"net/http"
	"time"
)

// embedderHealthTimeout bounds the health-check embed call, matching the
// original's 5-second tokio::time::timeout.
const embedderHealthTimeout = 5 * time.Second

type embedderHealthResponse struct {
	Active       bool   `json:"active"`
	ProviderType string `json:"provider_type,omitempty"`
	ModelName    string `json:"model_name,omitempty"`
	Dimensions   int    `json:"dimensions,omitempty"`
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
}

// handleEmbedderHealth runs a one-text embed call against the active
// embedder and reports whether it returned a vector of the expected
// dimension within the timeout.
func (s *Server) handleEmbedderHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.State.Load()
	emb := snapshot.EmbeddingProvider
	if emb == nil {
		s.writeJSON(w, http.StatusOK, embedderHealthResponse{
			Active: false, Status: "unhealthy", Message: "no embedding provider is configured",
		})
		return
	}

	resp := embedderHealthResponse{
		Active: true, ProviderType: emb.ProviderType(), ModelName: emb.ModelName(), Dimensions: emb.Dimension(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), embedderHealthTimeout)
	defer cancel()

	vec, err := emb.Embed(ctx, "health check")
	switch {
	case err != nil:
		resp.Status = "unhealthy"
		resp.Message = err.Error()
	case len(vec) != emb.Dimension():
		resp.Status = "unhealthy"
		resp.Message = "embedder returned a vector of unexpected length"
	default:
		resp.Status = "healthy"
	}

	s.writeJSON(w, http.StatusOK, resp)
}
