package llmprovider

import (
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/corewire/assistant/internal/chatmodel"
)

func msg(role chatmodel.Role, content chatmodel.MessageContent) chatmodel.Message {
	return chatmodel.Message{Role: role, Content: content, Timestamp: time.Now()}
}

func TestToGeminiContentsExtractsSystemInstruction(t *testing.T) {
	messages := []chatmodel.Message{
		msg(chatmodel.RoleSystem, chatmodel.TextContent("be nice")),
		msg(chatmodel.RoleUser, chatmodel.TextContent("hi")),
	}
	system, contents := toGeminiContents(messages)
	if system != "be nice" {
		t.Errorf("system = %q", system)
	}
	if len(contents) != 1 || contents[0].Role != genai.RoleUser {
		t.Fatalf("contents = %+v", contents)
	}
}

func TestToGeminiContentsMergesConsecutiveSameRole(t *testing.T) {
	messages := []chatmodel.Message{
		msg(chatmodel.RoleUser, chatmodel.TextContent("first")),
		msg(chatmodel.RoleUser, chatmodel.TextContent("second")),
		msg(chatmodel.RoleAssistant, chatmodel.TextContent("reply")),
	}
	_, contents := toGeminiContents(messages)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2 (merged user pair + assistant)", len(contents))
	}
	if len(contents[0].Parts) != 2 {
		t.Fatalf("contents[0].Parts = %+v, want 2 merged parts", contents[0].Parts)
	}
	if contents[1].Role != genai.RoleModel {
		t.Errorf("contents[1].Role = %s, want model", contents[1].Role)
	}
}

func TestToGeminiContentsResolvesToolResultName(t *testing.T) {
	messages := []chatmodel.Message{
		msg(chatmodel.RoleAssistant, chatmodel.ToolCallContent("call_1", "read_file", `{"path":"a.txt"}`)),
		msg(chatmodel.RoleUser, chatmodel.ToolResultContent("call_1", "file contents")),
	}
	_, contents := toGeminiContents(messages)
	if len(contents) != 2 {
		t.Fatalf("len(contents) = %d, want 2", len(contents))
	}
	fr := contents[1].Parts[0].FunctionResponse
	if fr == nil || fr.Name != "read_file" {
		t.Fatalf("FunctionResponse = %+v, want name read_file", fr)
	}
}

func TestSchemaToGeminiParams(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "file path"},
		},
		"required": []any{"path"},
	}
	out := schemaToGeminiParams(schema)
	if out.Type != genai.TypeObject {
		t.Errorf("Type = %v", out.Type)
	}
	if out.Properties["path"].Type != genai.TypeString {
		t.Errorf("path type = %v", out.Properties["path"].Type)
	}
	if len(out.Required) != 1 || out.Required[0] != "path" {
		t.Errorf("Required = %v", out.Required)
	}
}
