package llmprovider

import (
	"context"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/corewire/assistant/internal/chatmodel"
)

// OpenAICompatConfig configures a provider speaking the OpenAI
// chat-completions wire protocol. The same shape serves OpenAI, LM
// Studio, Ollama's chat endpoint, and Mistral, since all four accept
// identical request/response JSON over a custom BaseURL.
type OpenAICompatConfig struct {
	APIKey  string
	BaseURL string // empty uses OpenAI's default
	Model   string
	Label   string // defaults to Model if empty
}

// OpenAICompat implements Provider against the OpenAI-compatible
// streaming chat-completions API. Grounded on the teacher's
// internal/agent/providers/openai.go accumulation-by-index handling of
// streamed tool-call deltas, reworked to this runtime's Token/Provider
// contract.
type OpenAICompat struct {
	client *openai.Client
	model  string
	label  string
}

var _ Provider = (*OpenAICompat)(nil)

// NewOpenAICompat builds a provider for any OpenAI-compatible backend.
func NewOpenAICompat(cfg OpenAICompatConfig) *OpenAICompat {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	label := cfg.Label
	if label == "" {
		label = cfg.Model
	}
	return &OpenAICompat{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		label:  label,
	}
}

// Label identifies this provider instance.
func (p *OpenAICompat) Label() string { return p.label }

// Complete streams tokens from the chat-completions endpoint.
func (p *OpenAICompat) Complete(ctx context.Context, messages []chatmodel.Message, tools []ToolDefinition) (<-chan Token, error) {
	req := openai.ChatCompletionRequest{
		Model:    p.model,
		Stream:   true,
		Messages: toOpenAIMessages(messages),
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(p.label, err)
	}

	out := make(chan Token, 16)
	go p.pump(ctx, stream, out)
	return out, nil
}

// pump reads the SSE stream, accumulating tool-call deltas by index
// until the stream reports finish_reason = "tool_calls" or ends.
func (p *OpenAICompat) pump(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- Token) {
	defer close(out)
	defer stream.Close()

	type accum struct {
		id, name, args string
	}
	calls := make(map[int]*accum)
	order := make([]int, 0, 4)

	flush := func() {
		for _, idx := range order {
			c := calls[idx]
			if c == nil || c.id == "" || c.name == "" {
				continue
			}
			out <- ToolCallToken(c.id, c.name, c.args)
		}
		calls = make(map[int]*accum)
		order = order[:0]
	}

	for {
		select {
		case <-ctx.Done():
			out <- ErrorToken(&ProviderError{Reason: ReasonOther, Provider: p.label, Cause: ctx.Err()})
			return
		default:
		}

		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flush()
				return
			}
			out <- ErrorToken(classifyOpenAIError(p.label, err))
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		choice := resp.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			out <- TextToken(delta.Content)
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			c, ok := calls[idx]
			if !ok {
				c = &accum{}
				calls[idx] = c
				order = append(order, idx)
			}
			if tc.ID != "" {
				c.id = tc.ID
			}
			if tc.Function.Name != "" {
				c.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				c.args += tc.Function.Arguments
			}
		}

		if choice.FinishReason == openai.FinishReasonToolCalls {
			flush()
		}
	}
}

func toOpenAIMessages(messages []chatmodel.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Content.Type {
		case chatmodel.ContentText:
			result = append(result, openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content.Text,
			})
		case chatmodel.ContentToolCall:
			result = append(result, openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   m.Content.ToolCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      m.Content.ToolCallName,
						Arguments: m.Content.ToolCallArguments,
					},
				}},
			})
		case chatmodel.ContentToolResult:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content.ToolResultContent,
				ToolCallID: m.Content.ToolResultID,
			})
		}
	}
	return result
}

func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		}
	}
	return result
}

func classifyOpenAIError(label string, err error) *ProviderError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Reason:   ClassifyStatus(apiErr.HTTPStatusCode),
			Provider: label,
			Status:   apiErr.HTTPStatusCode,
			Message:  apiErr.Message,
			Cause:    err,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Reason:   ClassifyStatus(reqErr.HTTPStatusCode),
			Provider: label,
			Status:   reqErr.HTTPStatusCode,
			Cause:    err,
		}
	}
	return &ProviderError{Reason: ReasonNetwork, Provider: label, Cause: err}
}
