package llmprovider

import (
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corewire/assistant/internal/chatmodel"
)

func TestToOpenAIMessagesRoundTripsToolCallAndResult(t *testing.T) {
	messages := []chatmodel.Message{
		{Role: chatmodel.RoleUser, Content: chatmodel.TextContent("hi"), Timestamp: time.Now()},
		{Role: chatmodel.RoleAssistant, Content: chatmodel.ToolCallContent("c1", "read_file", `{"path":"a"}`), Timestamp: time.Now()},
		{Role: chatmodel.RoleUser, Content: chatmodel.ToolResultContent("c1", "contents"), Timestamp: time.Now()},
	}
	out := toOpenAIMessages(messages)
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3", len(out))
	}
	if out[1].ToolCalls[0].ID != "c1" || out[1].ToolCalls[0].Function.Name != "read_file" {
		t.Fatalf("tool call message = %+v", out[1])
	}
	if out[2].Role != openai.ChatMessageRoleTool || out[2].ToolCallID != "c1" || out[2].Content != "contents" {
		t.Fatalf("tool result message = %+v", out[2])
	}
}

func TestToOpenAIToolsCarriesSchema(t *testing.T) {
	tools := []ToolDefinition{{
		Name:        "read_file",
		Description: "reads a file",
		Schema:      map[string]any{"type": "object"},
	}}
	out := toOpenAITools(tools)
	if len(out) != 1 || out[0].Function.Name != "read_file" {
		t.Fatalf("out = %+v", out)
	}
}

func TestClassifyOpenAIErrorWrapsGenericError(t *testing.T) {
	pe := classifyOpenAIError("openai", errTest{"connection refused"})
	if pe.Reason != ReasonNetwork {
		t.Errorf("Reason = %v, want Network", pe.Reason)
	}
}

type errTest struct{ msg string }

func (e errTest) Error() string { return e.msg }
