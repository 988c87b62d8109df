package skillset

import (
	"context"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/workingmem"
)

// MemoryWriteSkill mutates the per-conversation scratchpad.
type MemoryWriteSkill struct {
	Map *workingmem.Map
}

var _ Skill = (*MemoryWriteSkill)(nil)

func (s *MemoryWriteSkill) Name() string { return "memory_write" }
func (s *MemoryWriteSkill) Description() string {
	return "Write to the conversation's working memory scratchpad. Supports set (key-value), note (free-form), delete (remove key), and clear (wipe all)."
}
func (s *MemoryWriteSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionMutating
}

func (s *MemoryWriteSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []any{"set", "note", "delete", "clear"},
				"description": "The action to perform",
			},
			"key":   map[string]any{"type": "string", "description": "Key name (required for set and delete)"},
			"value": map[string]any{"type": "string", "description": "Value to store (required for set and note)"},
		},
		"required": []any{"action"},
	}
}

func (s *MemoryWriteSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	action, _ := input["action"].(string)
	conversationID, _ := input["conversation_id"].(string)
	if conversationID == "" {
		return nil, ExecutionFailed("missing conversation context")
	}

	switch action {
	case "set":
		key, _ := input["key"].(string)
		value, ok := input["value"].(string)
		if key == "" {
			return nil, InvalidInput("set requires 'key'")
		}
		if !ok {
			return nil, InvalidInput("set requires 'value'")
		}
		s.Map.Set(conversationID, key, value)
		return map[string]any{"status": "ok", "action": "set", "key": key, "value": value}, nil

	case "note":
		value, ok := input["value"].(string)
		if !ok {
			return nil, InvalidInput("note requires 'value'")
		}
		s.Map.Note(conversationID, value)
		return map[string]any{"status": "ok", "action": "note"}, nil

	case "delete":
		key, _ := input["key"].(string)
		if key == "" {
			return nil, InvalidInput("delete requires 'key'")
		}
		existed := s.Map.Delete(conversationID, key)
		return map[string]any{"status": "ok", "action": "delete", "key": key, "existed": existed}, nil

	case "clear":
		s.Map.Clear(conversationID)
		return map[string]any{"status": "ok", "action": "clear"}, nil

	default:
		return nil, InvalidInput("unknown action: %q. Valid actions: set, note, delete, clear", action)
	}
}

// MemoryReadSkill reads the per-conversation scratchpad.
type MemoryReadSkill struct {
	Map *workingmem.Map
}

var _ Skill = (*MemoryReadSkill)(nil)

func (s *MemoryReadSkill) Name() string { return "memory_read" }
func (s *MemoryReadSkill) Description() string {
	return "Read from the conversation's working memory scratchpad. Provide a key to read a specific value, or omit it to get the full scratchpad contents."
}
func (s *MemoryReadSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionReadOnly
}

func (s *MemoryReadSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"key": map[string]any{"type": "string", "description": "Key to look up (omit to return all stored data)"},
		},
	}
}

func (s *MemoryReadSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	conversationID, _ := input["conversation_id"].(string)
	if conversationID == "" {
		return nil, ExecutionFailed("missing conversation context")
	}

	if key, ok := input["key"].(string); ok && key != "" {
		value, found := s.Map.Value(conversationID, key)
		if !found {
			return map[string]any{"key": key, "value": nil, "message": "not found"}, nil
		}
		return map[string]any{"key": key, "value": value}, nil
	}

	wm := s.Map.Get(conversationID)
	entries := map[string]any{}
	for k, v := range wm.Values {
		entries[k] = v
	}
	notes := wm.Notes
	if notes == nil {
		notes = []string{}
	}
	return map[string]any{"entries": entries, "notes": notes}, nil
}
