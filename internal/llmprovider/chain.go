package llmprovider

import (
	"context"

	"github.com/corewire/assistant/internal/chatmodel"
)

// Chain is an ordered list of providers tried in sequence on transient
// failure. Grounded on spec.md §4.4's provider-chain fallback semantics;
// the teacher has no equivalent (its providers are chosen per-request by
// the caller, not chained), so this type is new.
type Chain struct {
	entries []Provider
}

// NewChain builds a provider chain. A single-entry chain is valid; the
// caller is expected to raise chatmodel.WarnSingleChatProvider for it (the
// chain itself has no warning collector to push into).
func NewChain(providers ...Provider) *Chain {
	return &Chain{entries: providers}
}

// Len reports the number of providers in the chain.
func (c *Chain) Len() int { return len(c.entries) }

// Labels returns the ordered provider labels, for diagnostics.
func (c *Chain) Labels() []string {
	labels := make([]string, len(c.entries))
	for i, p := range c.entries {
		labels[i] = p.Label()
	}
	return labels
}

// Complete tries each provider in order. On a transient ProviderError
// (Network or RateLimit) from provider i, it emits a WarningToken
// ("falling back to <label>") and tries provider i+1. A non-transient
// error, or exhausting the chain, terminates the returned stream with
// that error's ErrorToken.
func (c *Chain) Complete(ctx context.Context, messages []chatmodel.Message, tools []ToolDefinition) (<-chan Token, error) {
	if len(c.entries) == 0 {
		return nil, &ProviderError{Reason: ReasonOther, Message: "no providers configured"}
	}

	out := make(chan Token, 16)
	go c.run(ctx, messages, tools, out)
	return out, nil
}

func (c *Chain) run(ctx context.Context, messages []chatmodel.Message, tools []ToolDefinition, out chan<- Token) {
	defer close(out)

	var lastErr *ProviderError
	for i, p := range c.entries {
		stream, err := p.Complete(ctx, messages, tools)
		if err != nil {
			pe, ok := AsProviderError(err)
			if !ok {
				pe = &ProviderError{Reason: ReasonOther, Provider: p.Label(), Cause: err}
			}
			if !pe.Reason.IsTransient() || i == len(c.entries)-1 {
				out <- ErrorToken(pe)
				return
			}
			lastErr = pe
			out <- WarningToken("falling back to " + c.entries[i+1].Label())
			continue
		}

		failed := false
		emittedContent := false
		for tok := range stream {
			if tok.Kind == TokenError {
				if !emittedContent && tok.Err != nil && tok.Err.Reason.IsTransient() && i < len(c.entries)-1 {
					lastErr = tok.Err
					out <- WarningToken("falling back to " + c.entries[i+1].Label())
					failed = true
					break
				}
				out <- tok
				return
			}
			if tok.Kind == TokenText || tok.Kind == TokenToolCall {
				emittedContent = true
			}
			out <- tok
		}
		if !failed {
			return
		}
	}

	if lastErr != nil {
		out <- ErrorToken(lastErr)
	}
}
