// Package approval implements the human-approval gate for mutating and
// network skills. Grounded directly on buddy-server/src/api/chat.rs's
// check_approval: a oneshot channel registered under an approval id,
// resolved by a client POST or a timeout, with an Once-policy memory of
// skills already approved once per conversation.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corewire/assistant/internal/config"
)

// Request describes a pending skill execution awaiting approval.
type Request struct {
	ID              string
	ConversationID  string
	SkillName       string
	Arguments       map[string]any
	PermissionLevel string
}

// Notifier is called when a Gate needs to tell the client a skill
// execution is awaiting approval. The orchestrator supplies this as a
// thin wrapper around its ChatEvent channel.
type Notifier func(ctx context.Context, req Request)

// Gate tracks pending approval channels and per-conversation "approved
// once" memory. The zero value is not usable; construct with New.
type Gate struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan bool

	onceMu sync.Mutex
	once   map[string]map[string]bool // conversationID -> skillName -> approved
}

// New creates a Gate whose Request calls time out after timeout if the
// client never responds.
func New(timeout time.Duration) *Gate {
	return &Gate{
		timeout: timeout,
		pending: make(map[string]chan bool),
		once:    make(map[string]map[string]bool),
	}
}

// Request applies the effective approval policy for skillName (looked up
// in overrides, defaulting to Always for anything not ReadOnly) and
// returns whether execution may proceed. Trust always approves
// immediately. Once approves immediately if the conversation has already
// approved this skill, otherwise falls through to asking. Always always
// asks.
func (g *Gate) Request(ctx context.Context, overrides map[string]config.ApprovalPolicy, notify Notifier, conversationID, skillName string, arguments map[string]any, permissionLevel string) bool {
	policy, ok := overrides[skillName]
	if !ok {
		policy = config.ApprovalAlways
	}

	switch policy {
	case config.ApprovalTrust:
		return true
	case config.ApprovalOnce:
		g.onceMu.Lock()
		approved := g.once[conversationID] != nil && g.once[conversationID][skillName]
		g.onceMu.Unlock()
		if approved {
			return true
		}
	}

	id := uuid.NewString()
	ch := make(chan bool, 1)

	g.mu.Lock()
	g.pending[id] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}()

	if notify != nil {
		notify(ctx, Request{
			ID:              id,
			ConversationID:  conversationID,
			SkillName:       skillName,
			Arguments:       arguments,
			PermissionLevel: permissionLevel,
		})
	}

	var approved bool
	select {
	case approved = <-ch:
	case <-time.After(g.timeout):
		approved = false
	case <-ctx.Done():
		approved = false
	}

	if approved && policy == config.ApprovalOnce {
		g.onceMu.Lock()
		if g.once[conversationID] == nil {
			g.once[conversationID] = make(map[string]bool)
		}
		g.once[conversationID][skillName] = true
		g.onceMu.Unlock()
	}

	return approved
}

// Resolve delivers the user's decision for a pending approval id. It
// reports false if the id is not (or no longer) pending.
func (g *Gate) Resolve(id string, approved bool) bool {
	g.mu.Lock()
	ch, ok := g.pending[id]
	if ok {
		delete(g.pending, id)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- approved:
	default:
	}
	return true
}

// Pending reports whether an approval id is currently outstanding.
func (g *Gate) Pending(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[id]
	return ok
}
