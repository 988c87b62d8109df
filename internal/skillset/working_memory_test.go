package skillset

import (
	"context"
	"testing"

	"github.com/corewire/assistant/internal/workingmem"
)

func TestMemoryWriteSetAndRead(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	read := &MemoryReadSkill{Map: m}

	_, err := write.Execute(context.Background(), map[string]any{
		"action": "set", "key": "name", "value": "ada", "conversation_id": "conv-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := read.Execute(context.Background(), map[string]any{"key": "name", "conversation_id": "conv-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["value"] != "ada" {
		t.Fatalf("value = %v", out["value"])
	}
}

func TestMemoryWriteNoteAppearsInFullRead(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	read := &MemoryReadSkill{Map: m}

	_, err := write.Execute(context.Background(), map[string]any{
		"action": "note", "value": "remember to follow up", "conversation_id": "conv-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := read.Execute(context.Background(), map[string]any{"conversation_id": "conv-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	notes := out["notes"].([]string)
	if len(notes) != 1 || notes[0] != "remember to follow up" {
		t.Fatalf("notes = %v", notes)
	}
}

func TestMemoryWriteDeleteRemovesKey(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}

	write.Execute(context.Background(), map[string]any{"action": "set", "key": "k", "value": "v", "conversation_id": "c"})
	out, err := write.Execute(context.Background(), map[string]any{"action": "delete", "key": "k", "conversation_id": "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["existed"] != true {
		t.Fatalf("existed = %v, want true", out["existed"])
	}
}

func TestMemoryWriteClearEmptiesScratchpad(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	read := &MemoryReadSkill{Map: m}

	write.Execute(context.Background(), map[string]any{"action": "set", "key": "k", "value": "v", "conversation_id": "c"})
	write.Execute(context.Background(), map[string]any{"action": "note", "value": "n", "conversation_id": "c"})
	_, err := write.Execute(context.Background(), map[string]any{"action": "clear", "conversation_id": "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, err := read.Execute(context.Background(), map[string]any{"conversation_id": "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := out["entries"].(map[string]any)
	notes := out["notes"].([]string)
	if len(entries) != 0 || len(notes) != 0 {
		t.Fatalf("expected empty scratchpad, got entries=%v notes=%v", entries, notes)
	}
}

func TestMemoryPerConversationIsolation(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	read := &MemoryReadSkill{Map: m}

	write.Execute(context.Background(), map[string]any{"action": "set", "key": "k", "value": "conv-a-value", "conversation_id": "a"})
	write.Execute(context.Background(), map[string]any{"action": "set", "key": "k", "value": "conv-b-value", "conversation_id": "b"})

	out, _ := read.Execute(context.Background(), map[string]any{"key": "k", "conversation_id": "a"})
	if out["value"] != "conv-a-value" {
		t.Fatalf("conversation a value = %v", out["value"])
	}
	out, _ = read.Execute(context.Background(), map[string]any{"key": "k", "conversation_id": "b"})
	if out["value"] != "conv-b-value" {
		t.Fatalf("conversation b value = %v", out["value"])
	}
}

func TestMemoryReadUnknownKeyReportsNotFound(t *testing.T) {
	m := workingmem.New()
	read := &MemoryReadSkill{Map: m}
	out, err := read.Execute(context.Background(), map[string]any{"key": "missing", "conversation_id": "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["value"] != nil {
		t.Fatalf("value = %v, want nil", out["value"])
	}
}

func TestMemoryWriteInvalidActionIsInvalidInput(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	_, err := write.Execute(context.Background(), map[string]any{"action": "explode", "conversation_id": "c"})
	skErr, ok := err.(*Error)
	if !ok || skErr.Kind != ErrInvalidInput {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestMemoryWriteSetWithoutKeyIsInvalidInput(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	_, err := write.Execute(context.Background(), map[string]any{"action": "set", "value": "v", "conversation_id": "c"})
	skErr, ok := err.(*Error)
	if !ok || skErr.Kind != ErrInvalidInput {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestMemoryWriteMissingConversationIDFails(t *testing.T) {
	m := workingmem.New()
	write := &MemoryWriteSkill{Map: m}
	_, err := write.Execute(context.Background(), map[string]any{"action": "clear"})
	skErr, ok := err.(*Error)
	if !ok || skErr.Kind != ErrExecutionFailed {
		t.Fatalf("err = %v, want ErrExecutionFailed", err)
	}
}
