package skillset

import (
	"context"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/embedder"
)

const defaultRecallLimit = 5

// VectorSearcher is the subset of vectorstore.Store RecallSkill needs.
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, limit int) ([]chatmodel.SearchHit, error)
}

// RecallSkill searches long-term vector memory for relevant entries.
type RecallSkill struct {
	Embedder embedder.Embedder
	Store    VectorSearcher
}

var _ Skill = (*RecallSkill)(nil)

func (s *RecallSkill) Name() string { return "recall" }
func (s *RecallSkill) Description() string {
	return "Search long-term memory for previously stored facts, preferences, or context relevant to a query."
}
func (s *RecallSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionReadOnly
}

func (s *RecallSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The search text to find relevant memories"},
			"limit": map[string]any{"type": "integer", "description": "Maximum number of results to return (default 5)"},
		},
		"required": []any{"query"},
	}
}

func (s *RecallSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	query, _ := input["query"].(string)
	if query == "" {
		return nil, InvalidInput("query must not be empty")
	}

	limit := defaultRecallLimit
	if raw, ok := input["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	embedding, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, ExecutionFailed("embedding failed: %v", err)
	}

	hits, err := s.Store.Search(ctx, embedding, limit)
	if err != nil {
		return nil, ExecutionFailed("search failed: %v", err)
	}

	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		entry := map[string]any{"text": h.Entry.SourceText, "score": h.Score}
		if cat, ok := h.Entry.Metadata["category"]; ok {
			entry["category"] = cat
		}
		if created, ok := h.Entry.Metadata["created_at"]; ok {
			entry["created_at"] = created
		}
		results = append(results, entry)
	}

	return map[string]any{"results": results, "total_found": len(results)}, nil
}
