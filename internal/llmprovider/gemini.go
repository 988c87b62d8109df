package llmprovider

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	"google.golang.org/genai"

	"github.com/corewire/assistant/internal/chatmodel"
)

// GeminiConfig configures a Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
	Label  string
}

// Gemini implements Provider against Google's streamGenerateContent API.
// Grounded on the teacher's internal/agent/providers/google.go SDK usage
// (client.Models.GenerateContentStream), reworked for this runtime's
// contract: system prompt in SystemInstruction, consecutive same-role
// messages merged into one Content with multiple Parts, and tool calls
// returned complete per chunk (no accumulation, unlike the OpenAI wire
// shape).
type Gemini struct {
	client *genai.Client
	model  string
	label  string
}

var _ Provider = (*Gemini)(nil)

// NewGemini creates a Gemini provider bound to an API key.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProviderError{Reason: ReasonOther, Provider: cfg.Label, Cause: err}
	}
	label := cfg.Label
	if label == "" {
		label = cfg.Model
	}
	return &Gemini{client: client, model: cfg.Model, label: label}, nil
}

// Label identifies this provider instance.
func (p *Gemini) Label() string { return p.label }

// Complete streams tokens from Gemini.
func (p *Gemini) Complete(ctx context.Context, messages []chatmodel.Message, tools []ToolDefinition) (<-chan Token, error) {
	system, contents := toGeminiContents(messages)

	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(tools) > 0 {
		genCfg.Tools = toGeminiTools(tools)
	}

	stream := p.client.Models.GenerateContentStream(ctx, p.model, contents, genCfg)

	out := make(chan Token, 16)
	go p.pump(ctx, stream, out)
	return out, nil
}

func (p *Gemini) pump(ctx context.Context, stream iter.Seq2[*genai.GenerateContentResponse, error], out chan<- Token) {
	defer close(out)

	for resp, err := range stream {
		select {
		case <-ctx.Done():
			out <- ErrorToken(&ProviderError{Reason: ReasonOther, Provider: p.label, Cause: ctx.Err()})
			return
		default:
		}
		if err != nil {
			out <- ErrorToken(classifyGeminiError(p.label, err))
			return
		}
		if resp == nil {
			continue
		}
		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					out <- TextToken(part.Text)
				}
				if part.FunctionCall != nil {
					argsJSON, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						argsJSON = []byte("{}")
					}
					out <- ToolCallToken(syntheticCallID(part.FunctionCall.Name), part.FunctionCall.Name, string(argsJSON))
				}
			}
		}
	}
}

// syntheticCallID fabricates a stable per-turn id for a Gemini function
// call, which the wire protocol does not itself provide.
func syntheticCallID(name string) string {
	return "gemini_call_" + name
}

// toGeminiContents splits system-role messages into a system instruction
// string and converts the remainder into role-tagged Content entries,
// merging consecutive entries of the same role into one Content with
// multiple Parts as the Gemini wire protocol requires. It also builds an
// id->name lookup from every ToolCall message seen so that a later
// ToolResult can be rendered as a named FunctionResponse (the
// functionCall/functionResponse pairing Gemini requires), since
// chatmodel.MessageContent's tool-result variant carries only the call id.
func toGeminiContents(messages []chatmodel.Message) (system string, contents []*genai.Content) {
	callNames := make(map[string]string)
	for _, m := range messages {
		if m.Content.Type == chatmodel.ContentToolCall {
			callNames[m.Content.ToolCallID] = m.Content.ToolCallName
		}
	}

	var systemParts []string
	for _, m := range messages {
		if m.Role == chatmodel.RoleSystem {
			systemParts = append(systemParts, m.Content.Text)
			continue
		}

		role, part := geminiRoleAndPart(m, callNames)
		if len(contents) > 0 && contents[len(contents)-1].Role == role {
			contents[len(contents)-1].Parts = append(contents[len(contents)-1].Parts, part)
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{part}})
	}

	if len(systemParts) > 0 {
		system = systemParts[0]
		for _, s := range systemParts[1:] {
			system += "\n" + s
		}
	}
	return system, contents
}

func geminiRoleAndPart(m chatmodel.Message, callNames map[string]string) (string, *genai.Part) {
	switch m.Content.Type {
	case chatmodel.ContentToolCall:
		var args map[string]any
		_ = json.Unmarshal([]byte(m.Content.ToolCallArguments), &args)
		return genai.RoleModel, &genai.Part{FunctionCall: &genai.FunctionCall{
			Name: m.Content.ToolCallName,
			Args: args,
		}}
	case chatmodel.ContentToolResult:
		name := callNames[m.Content.ToolResultID]
		return genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
			Name:     name,
			Response: map[string]any{"content": m.Content.ToolResultContent},
		}}
	default:
		role := genai.RoleUser
		if m.Role == chatmodel.RoleAssistant {
			role = genai.RoleModel
		}
		return role, &genai.Part{Text: m.Content.Text}
	}
}

func toGeminiTools(tools []ToolDefinition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaToGeminiParams(t.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// schemaToGeminiParams narrows a JSON-Schema-shaped map into genai's
// Schema type. Only the object/properties/required shape skills use is
// supported; unknown fields are dropped rather than rejected.
func schemaToGeminiParams(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	if props, ok := schema["properties"].(map[string]any); ok {
		for name, raw := range props {
			propMap, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			out.Properties[name] = &genai.Schema{
				Type:        geminiTypeFor(propMap["type"]),
				Description: stringOrEmpty(propMap["description"]),
			}
		}
	}
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	return out
}

func geminiTypeFor(v any) genai.Type {
	s, _ := v.(string)
	switch s {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}

func classifyGeminiError(label string, err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Reason:   ClassifyStatus(apiErr.Code),
			Provider: label,
			Status:   apiErr.Code,
			Message:  apiErr.Message,
			Cause:    err,
		}
	}
	return &ProviderError{Reason: ReasonNetwork, Provider: label, Cause: err}
}
