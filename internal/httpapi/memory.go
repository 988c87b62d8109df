package httpapi

import (
	"context"
	"net/http"
)

type memoryStatusResponse struct {
	TotalEntries      int64  `json:"total_entries"`
	MigrationRequired bool   `json:"migration_required"`
	StoredModel       string `json:"stored_model,omitempty"`
	StoredDimensions  int    `json:"stored_dimensions,omitempty"`
	ActiveModel       string `json:"active_model,omitempty"`
	ActiveDimensions  int    `json:"active_dimensions,omitempty"`
}

func (s *Server) handleMemoryStatus(w http.ResponseWriter, r *http.Request) {
	snapshot := s.State.Load()
	if snapshot.VectorStore == nil {
		s.writeError(w, http.StatusBadRequest, "no_vector_store", "no vector store is configured")
		return
	}

	total, err := snapshot.VectorStore.Count(r.Context())
	if err != nil {
		s.internalError(w, err.Error())
		return
	}

	storedModel, storedDim, _ := snapshot.VectorStore.StoredModelInfo(r.Context())

	resp := memoryStatusResponse{
		TotalEntries:      total,
		MigrationRequired: snapshot.VectorStore.NeedsMigration() && total > 0,
		StoredModel:       storedModel,
		StoredDimensions:  storedDim,
	}
	if snapshot.EmbeddingProvider != nil {
		resp.ActiveModel = snapshot.EmbeddingProvider.ModelName()
		resp.ActiveDimensions = snapshot.EmbeddingProvider.Dimension()
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type memoryMigrateResponse struct {
	Migrated int `json:"migrated"`
}

// handleMemoryMigrate re-embeds every stored entry with the currently
// active embedder and replaces the store's contents, used after swapping
// to a model with a different dimensionality.
func (s *Server) handleMemoryMigrate(w http.ResponseWriter, r *http.Request) {
	snapshot := s.State.Load()
	if snapshot.VectorStore == nil {
		s.writeError(w, http.StatusBadRequest, "no_vector_store", "no vector store is configured")
		return
	}
	if snapshot.EmbeddingProvider == nil {
		s.writeError(w, http.StatusBadRequest, "no_embedder", "no embedding provider is configured")
		return
	}

	ctx := r.Context()
	embedder := snapshot.EmbeddingProvider
	migrated, err := snapshot.VectorStore.Migrate(ctx, embedder.ModelName(), embedder.Dimension(),
		func(ctx context.Context, texts []string) ([][]float32, error) {
			return embedder.EmbedBatch(ctx, texts)
		})
	if err != nil {
		s.internalError(w, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, memoryMigrateResponse{Migrated: migrated})
}

func (s *Server) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	snapshot := s.State.Load()
	if snapshot.VectorStore == nil {
		s.writeError(w, http.StatusBadRequest, "no_vector_store", "no vector store is configured")
		return
	}
	if err := snapshot.VectorStore.Clear(r.Context()); err != nil {
		s.internalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
