package approval

import (
	"context"
	"testing"
	"time"

	"github.com/corewire/assistant/internal/config"
)

func TestTrustPolicyApprovesImmediately(t *testing.T) {
	g := New(time.Second)
	overrides := map[string]config.ApprovalPolicy{"write_file": config.ApprovalTrust}

	approved := g.Request(context.Background(), overrides, nil, "conv-1", "write_file", nil, "mutating")
	if !approved {
		t.Fatal("expected trust policy to approve immediately")
	}
}

func TestAlwaysPolicyWaitsForResolve(t *testing.T) {
	g := New(5 * time.Second)
	overrides := map[string]config.ApprovalPolicy{"write_file": config.ApprovalAlways}

	var gotID string
	notify := func(ctx context.Context, req Request) {
		gotID = req.ID
		go func() {
			time.Sleep(10 * time.Millisecond)
			g.Resolve(gotID, true)
		}()
	}

	approved := g.Request(context.Background(), overrides, notify, "conv-1", "write_file", nil, "mutating")
	if !approved {
		t.Fatal("expected approval after resolve(true)")
	}
}

func TestAlwaysPolicyDeniedOnResolveFalse(t *testing.T) {
	g := New(5 * time.Second)
	overrides := map[string]config.ApprovalPolicy{"write_file": config.ApprovalAlways}

	notify := func(ctx context.Context, req Request) {
		go g.Resolve(req.ID, false)
	}

	approved := g.Request(context.Background(), overrides, notify, "conv-1", "write_file", nil, "mutating")
	if approved {
		t.Fatal("expected denial after resolve(false)")
	}
}

func TestRequestTimesOutWithoutResolve(t *testing.T) {
	g := New(20 * time.Millisecond)
	overrides := map[string]config.ApprovalPolicy{"write_file": config.ApprovalAlways}

	approved := g.Request(context.Background(), overrides, func(context.Context, Request) {}, "conv-1", "write_file", nil, "mutating")
	if approved {
		t.Fatal("expected timeout to deny")
	}
}

func TestOncePolicyRemembersPriorApproval(t *testing.T) {
	g := New(5 * time.Second)
	overrides := map[string]config.ApprovalPolicy{"write_file": config.ApprovalOnce}

	notify := func(ctx context.Context, req Request) {
		go g.Resolve(req.ID, true)
	}
	if !g.Request(context.Background(), overrides, notify, "conv-1", "write_file", nil, "mutating") {
		t.Fatal("expected first request to be approved via notify")
	}

	// Second call should approve without notify being invoked.
	called := false
	secondNotify := func(ctx context.Context, req Request) { called = true }
	approved := g.Request(context.Background(), overrides, secondNotify, "conv-1", "write_file", nil, "mutating")
	if !approved {
		t.Fatal("expected once policy to remember prior approval")
	}
	if called {
		t.Fatal("expected notify not to be called for a remembered once-approval")
	}
}

func TestOncePolicyIsPerConversation(t *testing.T) {
	g := New(5 * time.Second)
	overrides := map[string]config.ApprovalPolicy{"write_file": config.ApprovalOnce}

	notify := func(ctx context.Context, req Request) { go g.Resolve(req.ID, true) }
	g.Request(context.Background(), overrides, notify, "conv-1", "write_file", nil, "mutating")

	called := false
	secondNotify := func(ctx context.Context, req Request) {
		called = true
		go g.Resolve(req.ID, false)
	}
	g.Request(context.Background(), overrides, secondNotify, "conv-2", "write_file", nil, "mutating")
	if !called {
		t.Fatal("expected a fresh conversation to require a new approval")
	}
}

func TestResolveUnknownIDReturnsFalse(t *testing.T) {
	g := New(time.Second)
	if g.Resolve("nonexistent", true) {
		t.Fatal("expected resolve of unknown id to report false")
	}
}

func TestDefaultPolicyIsAlwaysWhenUnconfigured(t *testing.T) {
	g := New(20 * time.Millisecond)
	approved := g.Request(context.Background(), nil, nil, "conv-1", "write_file", nil, "mutating")
	if approved {
		t.Fatal("expected default Always policy with no notifier to time out and deny")
	}
}
