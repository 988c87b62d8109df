package skillset

import (
	"context"
	"os"

	"github.com/corewire/assistant/internal/chatmodel"
)

// ReadFileSkill reads UTF-8 file contents from a sandboxed directory set.
type ReadFileSkill struct {
	AllowedDirectories []string
}

var _ Skill = (*ReadFileSkill)(nil)

func (s *ReadFileSkill) Name() string        { return "read_file" }
func (s *ReadFileSkill) Description() string { return "Read the contents of a file from an allowed directory" }
func (s *ReadFileSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionReadOnly
}

func (s *ReadFileSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string", "description": "Path to the file to read"},
		},
		"required": []any{"path"},
	}
}

func (s *ReadFileSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	path, _ := input["path"].(string)
	if path == "" {
		return nil, InvalidInput("missing required field: path")
	}

	canonical, err := validateReadPath(path, s.AllowedDirectories)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(canonical)
	if err != nil {
		return nil, ExecutionFailed("failed to read file: %v", err)
	}
	return map[string]any{"content": string(content)}, nil
}
