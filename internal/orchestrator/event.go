// Package orchestrator runs the streaming chat turn: provider dialogue,
// tool-call loop, memory recall, and approval coordination. Grounded
// directly on buddy-server/src/api/chat.rs's chat_handler/run_tool_loop.
package orchestrator

import "github.com/corewire/assistant/internal/chatmodel"

// EventKind tags a ChatEvent variant.
type EventKind string

const (
	EventConversationMeta EventKind = "conversation_meta"
	EventWarnings         EventKind = "warnings"
	EventMemoryContext    EventKind = "memory_context"
	EventTokenDelta       EventKind = "token_delta"
	EventWarning          EventKind = "warning"
	EventToolCallStart    EventKind = "tool_call_start"
	EventApprovalRequest  EventKind = "approval_request"
	EventToolCallResult   EventKind = "tool_call_result"
	EventError            EventKind = "error"
	EventDone             EventKind = "done"
)

// MemorySnippet is one recalled-memory entry surfaced to the client.
type MemorySnippet struct {
	Text     string  `json:"text"`
	Category string  `json:"category,omitempty"`
	Score    float32 `json:"score"`
}

// ChatEvent is one frame of the SSE stream a turn produces. Exactly one
// of its fields is meaningful per Kind; the rest are zero.
type ChatEvent struct {
	Kind EventKind `json:"type"`

	ConversationID string              `json:"conversation_id,omitempty"`
	Warnings       []chatmodel.Warning `json:"warnings,omitempty"`
	Memories       []MemorySnippet     `json:"memories,omitempty"`
	Content        string              `json:"content,omitempty"`
	Message        string              `json:"message,omitempty"`

	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	Arguments       string `json:"arguments,omitempty"`
	PermissionLevel string `json:"permission_level,omitempty"`
}

func metaEvent(conversationID string) ChatEvent {
	return ChatEvent{Kind: EventConversationMeta, ConversationID: conversationID}
}

func warningsEvent(warnings []chatmodel.Warning) ChatEvent {
	return ChatEvent{Kind: EventWarnings, Warnings: warnings}
}

func memoryContextEvent(memories []MemorySnippet) ChatEvent {
	return ChatEvent{Kind: EventMemoryContext, Memories: memories}
}

func tokenDeltaEvent(content string) ChatEvent {
	return ChatEvent{Kind: EventTokenDelta, Content: content}
}

func warningEvent(message string) ChatEvent {
	return ChatEvent{Kind: EventWarning, Message: message}
}

func toolCallStartEvent(id, name, arguments string) ChatEvent {
	return ChatEvent{Kind: EventToolCallStart, ID: id, Name: name, Arguments: arguments}
}

func approvalRequestEvent(id, name, arguments, permissionLevel string) ChatEvent {
	return ChatEvent{Kind: EventApprovalRequest, ID: id, Name: name, Arguments: arguments, PermissionLevel: permissionLevel}
}

func toolCallResultEvent(id, content string) ChatEvent {
	return ChatEvent{Kind: EventToolCallResult, ID: id, Content: content}
}

func errorEvent(message string) ChatEvent {
	return ChatEvent{Kind: EventError, Message: message}
}

func doneEvent() ChatEvent {
	return ChatEvent{Kind: EventDone}
}
