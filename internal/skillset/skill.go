// Package skillset implements the Skill capability, its built-in
// implementations, and the name-keyed registry the orchestrator dispatches
// tool calls through. Grounded on original_source's
// buddy-server/src/skill/mod.rs (SkillError, Skill trait, SkillRegistry,
// tool_definitions shape); the teacher's pkg/pluginsdk/validation.go
// contributes the jsonschema.CompileString + cache pattern used to
// validate input before dispatch.
package skillset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/corewire/assistant/internal/chatmodel"
)

// ErrorKind classifies why a skill invocation failed.
type ErrorKind string

const (
	ErrInvalidInput    ErrorKind = "invalid_input"
	ErrForbidden       ErrorKind = "forbidden"
	ErrExecutionFailed ErrorKind = "execution_failed"
)

// Error is the error type every Skill.Execute and Registry.Execute call
// returns on failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: ErrForbidden, Message: fmt.Sprintf(format, args...)}
}

func ExecutionFailed(format string, args ...any) *Error {
	return &Error{Kind: ErrExecutionFailed, Message: fmt.Sprintf(format, args...)}
}

// Skill is a callable tool capability exposed to LLM providers.
type Skill interface {
	Name() string
	Description() string
	Permission() chatmodel.PermissionLevel
	InputSchema() map[string]any
	Execute(ctx context.Context, input map[string]any) (map[string]any, error)
}

// Registry is a name-keyed collection of skills, compiled schemas cached
// per name so Execute doesn't recompile on every call.
type Registry struct {
	mu      sync.RWMutex
	skills  map[string]Skill
	schemas map[string]*jsonschema.Schema
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		skills:  make(map[string]Skill),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register adds a skill, compiling and caching its input schema.
// Overwrites any existing skill with the same name.
func (r *Registry) Register(s Skill) error {
	schema, err := compileSchema(s.Name(), s.InputSchema())
	if err != nil {
		return fmt.Errorf("skillset: compile schema for %q: %w", s.Name(), err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name()] = s
	r.schemas[s.Name()] = schema
	return nil
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// List returns every registered skill in no particular order.
func (r *Registry) List() []Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// Len reports the number of registered skills.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// ToolDefinition is the vendor-neutral tool shape consumed by
// internal/llmprovider.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolDefinitions produces one entry per registered skill.
func (r *Registry) ToolDefinitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, ToolDefinition{Name: s.Name(), Description: s.Description(), Schema: s.InputSchema()})
	}
	return out
}

// Execute validates input against the skill's compiled JSON Schema, then
// dispatches. Validation failures surface as ErrInvalidInput before the
// skill's own body runs, so individual skills need not re-check their
// required fields.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]any) (map[string]any, error) {
	r.mu.RLock()
	s, ok := r.skills[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil, InvalidInput("unknown skill %q", name)
	}

	if err := validateInput(schema, input); err != nil {
		return nil, InvalidInput("%s", err)
	}

	return s.Execute(ctx, input)
}

var schemaCache sync.Map

func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := name + ":" + string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(raw))
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

func validateInput(schema *jsonschema.Schema, input map[string]any) error {
	if schema == nil {
		return nil
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("input invalid: %w", err)
	}
	return nil
}
