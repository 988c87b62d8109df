package skillset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileWithinAllowedDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	s := &WriteFileSkill{AllowedDirectories: []string{dir}}
	out, err := s.Execute(context.Background(), map[string]any{"path": path, "content": "hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["bytes_written"] != len("hello world") {
		t.Fatalf("bytes_written = %v", out["bytes_written"])
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "hello world" {
		t.Fatalf("file content = %q", content)
	}
}

func TestWriteFileCreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "out.txt")

	s := &WriteFileSkill{AllowedDirectories: []string{dir}}
	_, err := s.Execute(context.Background(), map[string]any{"path": path, "content": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestWriteFileOutsideAllowedDirectoryForbidden(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(outside, "out.txt")

	s := &WriteFileSkill{AllowedDirectories: []string{dir}}
	_, err := s.Execute(context.Background(), map[string]any{"path": path, "content": "x"})
	skErr, ok := err.(*Error)
	if !ok || skErr.Kind != ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestWriteFileTraversalForbidden(t *testing.T) {
	dir := t.TempDir()
	traversal := filepath.Join(dir, "..", "escaped.txt")

	s := &WriteFileSkill{AllowedDirectories: []string{dir}}
	_, err := s.Execute(context.Background(), map[string]any{"path": traversal, "content": "x"})
	skErr, ok := err.(*Error)
	if !ok || skErr.Kind != ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestWriteFileMissingContentIsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	s := &WriteFileSkill{AllowedDirectories: []string{dir}}
	_, err := s.Execute(context.Background(), map[string]any{"path": filepath.Join(dir, "a.txt")})
	skErr, ok := err.(*Error)
	if !ok || skErr.Kind != ErrInvalidInput {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}
