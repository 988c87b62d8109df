package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/corewire/assistant/internal/approval"
	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/config"
	"github.com/corewire/assistant/internal/convstore"
	"github.com/corewire/assistant/internal/llmprovider"
	"github.com/corewire/assistant/internal/sharedstate"
	"github.com/corewire/assistant/internal/skillset"
)

// scriptedProvider replays a fixed sequence of token batches, one batch
// per Complete call, to drive the tool loop deterministically.
type scriptedProvider struct {
	batches [][]llmprovider.Token
	calls   int
}

func (p *scriptedProvider) Label() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, messages []chatmodel.Message, tools []llmprovider.ToolDefinition) (<-chan llmprovider.Token, error) {
	idx := p.calls
	p.calls++
	ch := make(chan llmprovider.Token, 8)
	go func() {
		defer close(ch)
		if idx >= len(p.batches) {
			return
		}
		for _, tok := range p.batches[idx] {
			ch <- tok
		}
	}()
	return ch, nil
}

func newTestOrchestrator(t *testing.T, provider llmprovider.Provider, registry *skillset.Registry) (*Orchestrator, *convstore.Store) {
	t.Helper()
	store, err := convstore.Open(filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{
		Config:   &cfg,
		Chain:    llmprovider.NewChain(provider),
		Registry: registry,
	}, "")

	gate := approval.New(2 * time.Second)
	return New(store, holder, gate, nil), store
}

func drainEvents(t *testing.T, ch <-chan ChatEvent) []ChatEvent {
	t.Helper()
	var events []ChatEvent
	for ev := range ch {
		events = append(events, ev)
		if len(events) > 200 {
			t.Fatal("too many events, possible infinite loop")
		}
	}
	return events
}

func TestPlainChatTurnEmitsMetaTokensAndDone(t *testing.T) {
	provider := &scriptedProvider{batches: [][]llmprovider.Token{
		{llmprovider.TextToken("hello "), llmprovider.TextToken("world")},
	}}
	o, _ := newTestOrchestrator(t, provider, skillset.NewRegistry())

	ch, err := o.Run(context.Background(), TurnRequest{
		Messages: []chatmodel.Message{{Role: chatmodel.RoleUser, Content: chatmodel.TextContent("hi"), Timestamp: time.Now()}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := drainEvents(t, ch)
	if events[0].Kind != EventConversationMeta {
		t.Fatalf("first event = %v, want conversation_meta", events[0].Kind)
	}
	last := events[len(events)-1]
	if last.Kind != EventDone {
		t.Fatalf("last event = %v, want done", last.Kind)
	}

	var deltas string
	for _, e := range events {
		if e.Kind == EventTokenDelta {
			deltas += e.Content
		}
	}
	if deltas != "hello world" {
		t.Fatalf("deltas = %q", deltas)
	}
}

func TestSingleToolCallFlowsThroughRegistry(t *testing.T) {
	reg := skillset.NewRegistry()
	reg.Register(&echoToolSkill{})

	provider := &scriptedProvider{batches: [][]llmprovider.Token{
		{llmprovider.ToolCallToken("call-1", "echo_tool", `{"text":"ping"}`)},
		{llmprovider.TextToken("done")},
	}}
	o, _ := newTestOrchestrator(t, provider, reg)

	ch, err := o.Run(context.Background(), TurnRequest{
		Messages: []chatmodel.Message{{Role: chatmodel.RoleUser, Content: chatmodel.TextContent("echo ping"), Timestamp: time.Now()}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := drainEvents(t, ch)
	var sawStart, sawResult bool
	for _, e := range events {
		if e.Kind == EventToolCallStart && e.Name == "echo_tool" {
			sawStart = true
		}
		if e.Kind == EventToolCallResult && e.ID == "call-1" {
			sawResult = true
			var payload map[string]any
			json.Unmarshal([]byte(e.Content), &payload)
			if payload["echo"] != "ping" {
				t.Fatalf("tool result payload = %v", payload)
			}
		}
	}
	if !sawStart || !sawResult {
		t.Fatalf("expected tool_call_start and tool_call_result events, got %+v", events)
	}
}

func TestIterationCapEmitsError(t *testing.T) {
	call := func(n int) []llmprovider.Token {
		return []llmprovider.Token{llmprovider.ToolCallToken("c", "echo_tool", "{}")}
	}
	batches := make([][]llmprovider.Token, MaxToolIterations+1)
	for i := range batches {
		batches[i] = call(i)
	}
	reg := skillset.NewRegistry()
	reg.Register(&echoToolSkill{})

	provider := &scriptedProvider{batches: batches}
	o, _ := newTestOrchestrator(t, provider, reg)

	ch, err := o.Run(context.Background(), TurnRequest{
		Messages: []chatmodel.Message{{Role: chatmodel.RoleUser, Content: chatmodel.TextContent("loop"), Timestamp: time.Now()}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := drainEvents(t, ch)
	foundError := false
	for _, e := range events {
		if e.Kind == EventError {
			foundError = true
		}
	}
	if !foundError {
		t.Fatal("expected an error event when the iteration cap is exceeded")
	}
	if events[len(events)-1].Kind != EventDone {
		t.Fatal("expected a terminal done event")
	}
}

func TestMutatingSkillRequiresApprovalAndTimesOutDenied(t *testing.T) {
	reg := skillset.NewRegistry()
	reg.Register(&mutatingSkill{})

	provider := &scriptedProvider{batches: [][]llmprovider.Token{
		{llmprovider.ToolCallToken("call-1", "mutate", "{}")},
		{llmprovider.TextToken("ok")},
	}}

	store, err := convstore.Open(filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{
		Config:   &cfg,
		Chain:    llmprovider.NewChain(provider),
		Registry: reg,
	}, "")
	gate := approval.New(20 * time.Millisecond) // short timeout, nobody resolves it
	o := New(store, holder, gate, nil)

	ch, err := o.Run(context.Background(), TurnRequest{
		Messages: []chatmodel.Message{{Role: chatmodel.RoleUser, Content: chatmodel.TextContent("mutate please"), Timestamp: time.Now()}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := drainEvents(t, ch)
	var sawApprovalRequest, sawDenied bool
	for _, e := range events {
		if e.Kind == EventApprovalRequest {
			sawApprovalRequest = true
		}
		if e.Kind == EventToolCallResult && e.Content == "User denied execution of mutate" {
			sawDenied = true
		}
	}
	if !sawApprovalRequest {
		t.Fatal("expected an approval_request event for a mutating skill")
	}
	if !sawDenied {
		t.Fatal("expected the tool result to report denial after timeout")
	}
}

func TestProviderFallbackEmitsWarning(t *testing.T) {
	failing := &scriptedProvider{}
	failingWrapped := &erroringProvider{inner: failing, err: &llmprovider.ProviderError{Reason: llmprovider.ReasonNetwork, Provider: "primary"}}
	backup := &scriptedProvider{batches: [][]llmprovider.Token{{llmprovider.TextToken("from backup")}}}

	store, err := convstore.Open(filepath.Join(t.TempDir(), "conv.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	holder := sharedstate.NewHolder(&sharedstate.Snapshot{
		Config:   &cfg,
		Chain:    llmprovider.NewChain(failingWrapped, backup),
		Registry: skillset.NewRegistry(),
	}, "")
	gate := approval.New(time.Second)
	o := New(store, holder, gate, nil)

	ch, err := o.Run(context.Background(), TurnRequest{
		Messages: []chatmodel.Message{{Role: chatmodel.RoleUser, Content: chatmodel.TextContent("hi"), Timestamp: time.Now()}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := drainEvents(t, ch)
	var sawWarning bool
	var deltas string
	for _, e := range events {
		if e.Kind == EventWarning {
			sawWarning = true
		}
		if e.Kind == EventTokenDelta {
			deltas += e.Content
		}
	}
	if !sawWarning {
		t.Fatal("expected a warning event from the provider fallback")
	}
	if deltas != "from backup" {
		t.Fatalf("deltas = %q, want content from the backup provider", deltas)
	}
}

// echoToolSkill is a read-only test skill used to drive the tool loop.
type echoToolSkill struct{}

func (echoToolSkill) Name() string        { return "echo_tool" }
func (echoToolSkill) Description() string { return "echoes text back" }
func (echoToolSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionReadOnly
}
func (echoToolSkill) InputSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{"text": map[string]any{"type": "string"}}}
}
func (echoToolSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	return map[string]any{"echo": input["text"]}, nil
}

// mutatingSkill requires approval before it can run.
type mutatingSkill struct{}

func (mutatingSkill) Name() string        { return "mutate" }
func (mutatingSkill) Description() string { return "mutates something" }
func (mutatingSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionMutating
}
func (mutatingSkill) InputSchema() map[string]any {
	return map[string]any{"type": "object"}
}
func (mutatingSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	return map[string]any{"status": "mutated"}, nil
}

// erroringProvider fails its first Complete call, then delegates.
type erroringProvider struct {
	inner   *scriptedProvider
	err     *llmprovider.ProviderError
	errored bool
}

func (p *erroringProvider) Label() string { return "primary" }

func (p *erroringProvider) Complete(ctx context.Context, messages []chatmodel.Message, tools []llmprovider.ToolDefinition) (<-chan llmprovider.Token, error) {
	if !p.errored {
		p.errored = true
		return nil, p.err
	}
	return p.inner.Complete(ctx, messages, tools)
}
