package skillset

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/embedder"
)

// VectorWriter is the subset of vectorstore.Store that RememberSkill
// needs, kept narrow so tests can supply a fake.
type VectorWriter interface {
	Store(ctx context.Context, entry chatmodel.VectorEntry) error
}

// RememberSkill embeds a fact and stores it in long-term vector memory.
type RememberSkill struct {
	Embedder embedder.Embedder
	Store    VectorWriter
}

var _ Skill = (*RememberSkill)(nil)

func (s *RememberSkill) Name() string { return "remember" }
func (s *RememberSkill) Description() string {
	return "Save a fact, preference, or important information to long-term memory for later retrieval across conversations."
}
func (s *RememberSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionMutating
}

func (s *RememberSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text":     map[string]any{"type": "string", "description": "The fact, preference, or information to remember"},
			"category": map[string]any{"type": "string", "description": "Optional category label (e.g. preference, fact, project)"},
		},
		"required": []any{"text"},
	}
}

func (s *RememberSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	text, _ := input["text"].(string)
	if text == "" {
		return nil, InvalidInput("text must not be empty")
	}

	embedding, err := s.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, ExecutionFailed("embedding failed: %v", err)
	}

	metadata := map[string]any{"created_at": time.Now().UTC().Format(time.RFC3339)}
	if category, ok := input["category"].(string); ok && category != "" {
		metadata["category"] = category
	}
	if conversationID, ok := input["conversation_id"].(string); ok && conversationID != "" {
		metadata["conversation_id"] = conversationID
	}

	id := uuid.NewString()
	entry := chatmodel.VectorEntry{
		ID:         id,
		Embedding:  embedding,
		SourceText: text,
		Metadata:   metadata,
	}
	if err := s.Store.Store(ctx, entry); err != nil {
		return nil, ExecutionFailed("failed to store memory: %v", err)
	}

	return map[string]any{"status": "ok", "id": id, "message": "Memory saved successfully"}, nil
}
