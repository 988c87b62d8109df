package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/corewire/assistant/internal/approval"
	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/convstore"
	"github.com/corewire/assistant/internal/llmprovider"
	"github.com/corewire/assistant/internal/observability"
	"github.com/corewire/assistant/internal/sharedstate"
	"github.com/corewire/assistant/internal/skillset"
)

// MaxToolIterations bounds the tool-call loop so a misbehaving provider
// cannot spin forever.
const MaxToolIterations = 10

// eventChannelCapacity matches the bounded channel the original backs
// its chat stream with, so a slow client paces the provider stream
// instead of unbounded memory growth.
const eventChannelCapacity = 64

// TurnRequest is the orchestrator's entry point payload.
type TurnRequest struct {
	ConversationID string // empty: auto-create
	Messages       []chatmodel.Message
	DisableMemory  bool
	Source         string // "web", "telegram", "whatsapp" — tag for a newly created conversation
}

// ErrConversationNotFound is returned (unwrapped) by Run when
// ConversationID is set but no such conversation exists.
type ErrConversationNotFound struct{ ID string }

func (e *ErrConversationNotFound) Error() string {
	return fmt.Sprintf("conversation %q not found", e.ID)
}

// Orchestrator runs chat turns against a conversation store, a
// hot-reloadable component snapshot, and an approval gate.
type Orchestrator struct {
	Store    *convstore.Store
	State    *sharedstate.Holder
	Approval *approval.Gate
	Logger   *slog.Logger

	// Tracer is optional: a nil Tracer means every span call below is
	// skipped. Assigned after New by the command that wires a
	// configured Tracer in, so existing construction call sites don't
	// need updating.
	Tracer *observability.Tracer
}

// New constructs an Orchestrator. A nil logger defaults to slog.Default().
func New(store *convstore.Store, state *sharedstate.Holder, gate *approval.Gate, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{Store: store, State: state, Approval: gate, Logger: logger}
}

// Run resolves/creates the conversation and streams the turn's ChatEvents
// on the returned channel. The channel is closed after a terminal `done`
// event. If the conversation cannot be resolved, Run returns a nil
// channel and the error (*ErrConversationNotFound for an unknown id).
func (o *Orchestrator) Run(ctx context.Context, req TurnRequest) (<-chan ChatEvent, error) {
	conversationID, history, err := o.resolveConversation(ctx, req)
	if err != nil {
		return nil, err
	}

	persistFrom := len(history)
	messages := append(append([]chatmodel.Message{}, history...), req.Messages...)

	out := make(chan ChatEvent, eventChannelCapacity)
	go o.runTurn(ctx, conversationID, messages, persistFrom, req.DisableMemory, out)
	return out, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, req TurnRequest) (string, []chatmodel.Message, error) {
	if req.ConversationID != "" {
		conv, err := o.Store.GetConversation(ctx, req.ConversationID)
		if err != nil {
			return "", nil, err
		}
		if conv == nil {
			return "", nil, &ErrConversationNotFound{ID: req.ConversationID}
		}
		return conv.ID, conv.Messages, nil
	}

	title := "New conversation"
	for _, m := range req.Messages {
		if m.Role == chatmodel.RoleUser && m.Content.Type == chatmodel.ContentText {
			title = convstore.TitleFromMessage(m.Content.Text)
			break
		}
	}
	source := req.Source
	if source == "" {
		source = "web"
	}
	conv, err := o.Store.CreateConversation(ctx, title, source)
	if err != nil {
		return "", nil, err
	}
	return conv.ID, nil, nil
}

func (o *Orchestrator) persist(ctx context.Context, conversationID string, msg chatmodel.Message) {
	if err := o.Store.AppendMessage(ctx, conversationID, msg); err != nil {
		o.Logger.Warn("failed to persist message", "conversation_id", conversationID, "error", err)
	}
}

func (o *Orchestrator) runTurn(ctx context.Context, conversationID string, messages []chatmodel.Message, persistFrom int, disableMemory bool, out chan<- ChatEvent) {
	defer close(out)

	out <- metaEvent(conversationID)

	for _, m := range messages[persistFrom:] {
		o.persist(ctx, conversationID, m)
	}

	snapshot := o.State.Load()

	if warnings := o.State.Warnings(); len(warnings) > 0 {
		out <- warningsEvent(warnings)
	}

	recalledContext, memories := o.recall(ctx, snapshot, messages, disableMemory)
	if len(memories) > 0 {
		out <- memoryContextEvent(memories)
	}

	for iteration := 0; iteration < MaxToolIterations; iteration++ {
		providerMessages := o.composePrompt(messages, recalledContext, conversationID)

		var tools []llmprovider.ToolDefinition
		if snapshot.Registry != nil {
			for _, td := range snapshot.Registry.ToolDefinitions() {
				tools = append(tools, llmprovider.ToolDefinition{Name: td.Name, Description: td.Description, Schema: td.Schema})
			}
		}

		tokens, err := o.completeWithTrace(ctx, snapshot, providerMessages, tools)
		if err != nil {
			out <- errorEvent(err.Error())
			out <- doneEvent()
			return
		}

		var fullText string
		type collectedCall struct{ id, name, args string }
		var toolCalls []collectedCall
		streamErr := (*llmprovider.ProviderError)(nil)

		for tok := range tokens {
			switch tok.Kind {
			case llmprovider.TokenText:
				fullText += tok.Text
				out <- tokenDeltaEvent(tok.Text)
			case llmprovider.TokenWarning:
				out <- warningEvent(tok.Warning)
			case llmprovider.TokenToolCall:
				toolCalls = append(toolCalls, collectedCall{tok.ToolCallID, tok.ToolName, tok.ToolArgsJSON})
			case llmprovider.TokenError:
				streamErr = tok.Err
			}
		}

		if streamErr != nil {
			out <- errorEvent(streamErr.Error())
			out <- doneEvent()
			return
		}

		if len(toolCalls) == 0 {
			if fullText != "" {
				o.persist(ctx, conversationID, chatmodel.Message{
					Role:      chatmodel.RoleAssistant,
					Content:   chatmodel.TextContent(fullText),
					Timestamp: now(),
				})
			}
			out <- doneEvent()
			return
		}

		for _, call := range toolCalls {
			out <- toolCallStartEvent(call.id, call.name, call.args)

			toolCallMsg := chatmodel.Message{
				Role:      chatmodel.RoleAssistant,
				Content:   chatmodel.ToolCallContent(call.id, call.name, call.args),
				Timestamp: now(),
			}
			o.persist(ctx, conversationID, toolCallMsg)
			messages = append(messages, toolCallMsg)

			resultContent := o.executeToolCall(ctx, snapshot, conversationID, call.id, call.name, call.args, out)

			out <- toolCallResultEvent(call.id, resultContent)

			toolResultMsg := chatmodel.Message{
				Role:      chatmodel.RoleUser,
				Content:   chatmodel.ToolResultContent(call.id, resultContent),
				Timestamp: now(),
			}
			o.persist(ctx, conversationID, toolResultMsg)
			messages = append(messages, toolResultMsg)
		}
	}

	out <- errorEvent(fmt.Sprintf("Tool call loop exceeded maximum of %d iterations", MaxToolIterations))
	out <- doneEvent()
}

// executeToolCall looks up and runs a single tool call, gated by approval
// when the skill is not ReadOnly, returning the string to store as the
// ToolResult content.
func (o *Orchestrator) executeToolCall(ctx context.Context, snapshot *sharedstate.Snapshot, conversationID, id, name, argsJSON string, out chan<- ChatEvent) string {
	if snapshot.Registry == nil {
		return fmt.Sprintf("Error: unknown tool '%s'", name)
	}
	skill, ok := snapshot.Registry.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'", name)
	}

	var input map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &input); err != nil || input == nil {
		input = map[string]any{}
	}

	if skill.Permission() != chatmodel.PermissionReadOnly {
		notify := func(ctx context.Context, r approval.Request) {
			argsJSON, _ := json.Marshal(r.Arguments)
			out <- approvalRequestEvent(r.ID, r.SkillName, string(argsJSON), r.PermissionLevel)
		}
		approved := o.Approval.Request(ctx, snapshot.ApprovalOverrides, notify, conversationID, name, input, string(skill.Permission()))
		if !approved {
			return fmt.Sprintf("User denied execution of %s", name)
		}
	}

	input["conversation_id"] = conversationID
	output, err := o.executeWithTrace(ctx, skill, name, input)
	if err != nil {
		return fmt.Sprintf("Error: %s", err.Error())
	}
	encoded, err := json.Marshal(output)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// completeWithTrace wraps a provider chain's Complete call in a span when
// tracing is configured. The chain itself picks which provider in the
// failover list ultimately serves the request, so the span only names
// the chain as a whole; RecordError fires if Complete fails to even
// start the stream (a mid-stream TokenError is handled by the caller,
// which has no span scope to attach it to).
func (o *Orchestrator) completeWithTrace(ctx context.Context, snapshot *sharedstate.Snapshot, messages []chatmodel.Message, tools []llmprovider.ToolDefinition) (<-chan llmprovider.Token, error) {
	if o.Tracer == nil {
		return snapshot.Chain.Complete(ctx, messages, tools)
	}
	spanCtx, span := o.Tracer.TraceProviderCompletion(ctx, "chain", "")
	defer span.End()
	tokens, err := snapshot.Chain.Complete(spanCtx, messages, tools)
	observability.RecordError(span, err)
	return tokens, err
}

// executeWithTrace wraps a single skill invocation in a span when tracing
// is configured.
func (o *Orchestrator) executeWithTrace(ctx context.Context, skill skillset.Skill, name string, input map[string]any) (map[string]any, error) {
	if o.Tracer == nil {
		return skill.Execute(ctx, input)
	}
	spanCtx, span := o.Tracer.TraceSkillExecution(ctx, name)
	defer span.End()
	output, err := skill.Execute(spanCtx, input)
	observability.RecordError(span, err)
	return output, err
}

func (o *Orchestrator) composePrompt(messages []chatmodel.Message, recalledContext, conversationID string) []chatmodel.Message {
	out := append([]chatmodel.Message{}, messages...)

	// Mirrors the original's two sequential prepends in order: recalled
	// context is prepended first, then working memory, so working memory
	// ends up ahead of recalled context in the final prompt.
	if recalledContext != "" {
		out = append([]chatmodel.Message{{
			Role:      chatmodel.RoleSystem,
			Content:   chatmodel.TextContent(recalledContext),
			Timestamp: now(),
		}}, out...)
	}

	if o.State.WorkingMemory != nil {
		wm := o.State.WorkingMemory.Get(conversationID)
		if !wm.IsEmpty() {
			out = append([]chatmodel.Message{{
				Role:      chatmodel.RoleSystem,
				Content:   chatmodel.TextContent("[Working Memory]\n" + wm.ToContextString()),
				Timestamp: now(),
			}}, out...)
		}
	}

	return out
}

func now() time.Time { return time.Now().UTC() }
