// Package chatmodel defines the domain types shared across the assistant
// runtime: conversations, messages, vector entries, and provider config
// entries. Nothing in this package talks to a database, a vendor API, or
// the filesystem — it is pure data.
package chatmodel

import "time"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ContentType tags which variant of MessageContent a Message carries.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentToolCall   ContentType = "tool_call"
	ContentToolResult ContentType = "tool_result"
)

// MessageContent is a tagged union over Message bodies. Exactly one of the
// three shapes is meaningful, selected by Type.
type MessageContent struct {
	Type ContentType `json:"type"`

	// Text content (Type == ContentText).
	Text string `json:"text,omitempty"`

	// ToolCall content (Type == ContentToolCall).
	ToolCallID        string `json:"id,omitempty"`
	ToolCallName      string `json:"name,omitempty"`
	ToolCallArguments string `json:"arguments,omitempty"`

	// ToolResult content (Type == ContentToolResult). ID matches the
	// ToolCallID of a preceding ToolCall in the same conversation.
	ToolResultID      string `json:"result_id,omitempty"`
	ToolResultContent string `json:"result_content,omitempty"`
}

// TextContent builds a Text-variant MessageContent.
func TextContent(text string) MessageContent {
	return MessageContent{Type: ContentText, Text: text}
}

// ToolCallContent builds a ToolCall-variant MessageContent.
func ToolCallContent(id, name, arguments string) MessageContent {
	return MessageContent{Type: ContentToolCall, ToolCallID: id, ToolCallName: name, ToolCallArguments: arguments}
}

// ToolResultContent builds a ToolResult-variant MessageContent.
func ToolResultContent(id, content string) MessageContent {
	return MessageContent{Type: ContentToolResult, ToolResultID: id, ToolResultContent: content}
}

// Message is one role-tagged entry in a Conversation's ordered log.
type Message struct {
	Role      Role           `json:"role"`
	Content   MessageContent `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// Conversation is a persisted, ordered sequence of messages with a stable id.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is the row shape returned by ListConversations.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// VectorEntry is one stored (embedding, source text, metadata) tuple.
type VectorEntry struct {
	ID         string         `json:"id"`
	Embedding  []float32      `json:"embedding"`
	SourceText string         `json:"source_text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	ModelName  string         `json:"model_name"`
	Dimensions int            `json:"dimensions"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SearchHit pairs a VectorEntry with its similarity score for one query.
type SearchHit struct {
	Entry VectorEntry `json:"entry"`
	Score float32     `json:"score"`
}

// ApprovalPolicy controls whether a Mutating/Network skill needs a human
// approval before it executes.
type ApprovalPolicy string

const (
	ApprovalAlways ApprovalPolicy = "always"
	ApprovalOnce   ApprovalPolicy = "once"
	ApprovalTrust  ApprovalPolicy = "trust"
)

// PermissionLevel classifies the blast radius of a skill invocation.
type PermissionLevel string

const (
	PermissionReadOnly PermissionLevel = "read_only"
	PermissionMutating PermissionLevel = "mutating"
	PermissionNetwork  PermissionLevel = "network"
)

// WarningSeverity distinguishes informational notices from actionable ones.
type WarningSeverity string

const (
	SeverityInfo    WarningSeverity = "info"
	SeverityWarning WarningSeverity = "warning"
)

// Warning is a stable-coded notice surfaced to operators and, at turn
// start, to chat clients. The collector that owns these keeps at most one
// per Code.
type Warning struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Severity WarningSeverity `json:"severity"`
}

// Well-known warning codes.
const (
	WarnSingleChatProvider       = "single_chat_provider"
	WarnNoEmbeddingModel         = "no_embedding_model"
	WarnNoVectorStore            = "no_vector_store"
	WarnEmbeddingDimensionMismatch = "embedding_dimension_mismatch"
	WarnRestartRequired          = "restart_required"
)

// WorkingMemory is the per-conversation scratchpad: a flat key/value map
// plus an append-only list of free-form notes.
type WorkingMemory struct {
	Values map[string]string `json:"values"`
	Notes  []string          `json:"notes"`
}

// IsEmpty reports whether the scratchpad has never been written to.
func (w *WorkingMemory) IsEmpty() bool {
	return w == nil || (len(w.Values) == 0 && len(w.Notes) == 0)
}

// ToContextString renders the scratchpad as a short block suitable for
// inclusion in a "[Working Memory]" system message.
func (w *WorkingMemory) ToContextString() string {
	if w.IsEmpty() {
		return ""
	}
	s := ""
	for k, v := range w.Values {
		s += "- " + k + ": " + v + "\n"
	}
	for _, n := range w.Notes {
		s += "- note: " + n + "\n"
	}
	return s
}
