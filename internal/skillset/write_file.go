package skillset

import (
	"context"
	"os"

	"github.com/corewire/assistant/internal/chatmodel"
)

// WriteFileSkill writes content to a sandboxed directory, creating parent
// directories as needed.
type WriteFileSkill struct {
	AllowedDirectories []string
}

var _ Skill = (*WriteFileSkill)(nil)

func (s *WriteFileSkill) Name() string        { return "write_file" }
func (s *WriteFileSkill) Description() string { return "Write content to a file in an allowed directory" }
func (s *WriteFileSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionMutating
}

func (s *WriteFileSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string", "description": "Path to the file to write"},
			"content": map[string]any{"type": "string", "description": "Content to write to the file"},
		},
		"required": []any{"path", "content"},
	}
}

func (s *WriteFileSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	path, _ := input["path"].(string)
	content, ok := input["content"].(string)
	if path == "" {
		return nil, InvalidInput("missing required field: path")
	}
	if !ok {
		return nil, InvalidInput("missing required field: content")
	}

	resolved, err := validateWritePath(path, s.AllowedDirectories)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return nil, ExecutionFailed("failed to write file: %v", err)
	}
	return map[string]any{"bytes_written": len(content)}, nil
}
