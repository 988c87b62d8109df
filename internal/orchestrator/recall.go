package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/sharedstate"
)

// recall searches long-term memory for the latest user message and, if
// any result clears the similarity threshold, returns a "## Recalled
// Memories" system-prompt section plus the snippets to surface to the
// client. Returns ("", nil) when memory is disabled, unconfigured, or
// nothing cleared the bar.
func (o *Orchestrator) recall(ctx context.Context, snapshot *sharedstate.Snapshot, messages []chatmodel.Message, disableMemory bool) (string, []MemorySnippet) {
	if snapshot.Config == nil || !snapshot.Config.Memory.AutoRetrieve || disableMemory {
		return "", nil
	}
	if snapshot.EmbeddingProvider == nil || snapshot.VectorStore == nil {
		return "", nil
	}

	query := latestUserText(messages)
	if query == "" {
		return "", nil
	}

	embedding, err := snapshot.EmbeddingProvider.Embed(ctx, query)
	if err != nil {
		o.Logger.Warn("recall embedding failed", "error", err)
		return "", nil
	}

	limit := snapshot.Config.Memory.AutoRetrieveLimit
	if limit <= 0 {
		limit = 5
	}
	hits, err := snapshot.VectorStore.Search(ctx, embedding, limit)
	if err != nil {
		o.Logger.Warn("recall search failed", "error", err)
		return "", nil
	}

	threshold := snapshot.Config.Memory.SimilarityThreshold
	var lines []string
	var snippets []MemorySnippet
	lines = append(lines, "## Recalled Memories")
	for _, h := range hits {
		if h.Score < threshold {
			continue
		}
		category, _ := h.Entry.Metadata["category"].(string)
		label := category
		if label == "" {
			label = "general"
		}
		lines = append(lines, fmt.Sprintf("- %q (%s, relevance: %.2f)", h.Entry.SourceText, label, h.Score))
		snippets = append(snippets, MemorySnippet{Text: h.Entry.SourceText, Category: category, Score: h.Score})
	}

	if len(snippets) == 0 {
		return "", nil
	}
	return strings.Join(lines, "\n"), snippets
}

func latestUserText(messages []chatmodel.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role == chatmodel.RoleUser && m.Content.Type == chatmodel.ContentText {
			return m.Content.Text
		}
	}
	return ""
}
