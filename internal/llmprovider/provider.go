// Package llmprovider implements the Provider capability and its chain of
// fallback, adapted from the teacher's internal/agent/providers package.
package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/corewire/assistant/internal/chatmodel"
)

// ToolDefinition describes a callable skill in vendor-neutral form.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      map[string]any
}

// TokenKind identifies which field of a Token is populated.
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenToolCall
	TokenWarning
	TokenError
)

// Token is the tagged union streamed out of Provider.Complete. A
// TokenError value always terminates the stream: the channel is closed
// immediately after it (the stream's "or per-item errors" case).
type Token struct {
	Kind TokenKind

	Text string // TokenText

	ToolCallID   string // TokenToolCall
	ToolName     string
	ToolArgsJSON string

	Warning string // TokenWarning

	Err *ProviderError // TokenError
}

func TextToken(text string) Token { return Token{Kind: TokenText, Text: text} }

func ToolCallToken(id, name, argsJSON string) Token {
	return Token{Kind: TokenToolCall, ToolCallID: id, ToolName: name, ToolArgsJSON: argsJSON}
}

func WarningToken(message string) Token { return Token{Kind: TokenWarning, Warning: message} }

func ErrorToken(err *ProviderError) Token { return Token{Kind: TokenError, Err: err} }

// Reason classifies why a provider request failed, narrowed from the
// teacher's nine-value FailoverReason to this runtime's five-value
// taxonomy: only Network and RateLimit are transient (trigger chain
// fallback); Auth, MalformedResponse, and Other surface to the client.
type Reason string

const (
	ReasonNetwork           Reason = "network"
	ReasonRateLimit         Reason = "rate_limit"
	ReasonAuth              Reason = "auth"
	ReasonMalformedResponse Reason = "malformed_response"
	ReasonOther             Reason = "other"
)

// IsTransient reports whether the chain should advance to the next
// provider on this reason.
func (r Reason) IsTransient() bool {
	return r == ReasonNetwork || r == ReasonRateLimit
}

// ProviderError is a structured error from a Provider implementation.
type ProviderError struct {
	Reason   Reason
	Provider string
	Status   int
	Message  string
	Cause    error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Reason)
	if e.Provider != "" {
		fmt.Fprintf(&b, " %s", e.Provider)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " %s", e.Message)
	} else if e.Cause != nil {
		fmt.Fprintf(&b, " %s", e.Cause.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ClassifyStatus maps an HTTP status code onto the Reason taxonomy, per
// spec.md's "401->Auth, 429->RateLimit, else Other" rule.
func ClassifyStatus(status int) Reason {
	switch status {
	case 401, 403:
		return ReasonAuth
	case 429:
		return ReasonRateLimit
	case 0:
		return ReasonNetwork
	default:
		if status >= 500 {
			return ReasonOther
		}
		return ReasonOther
	}
}

// AsProviderError extracts a *ProviderError from an error chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// Provider is the capability interface implemented by each vendor wire
// protocol. Complete returns a channel of Token values; the channel is
// closed when the stream ends, whether by completion or by error. A
// non-nil error returned from Complete itself means the request could not
// even be started (e.g. malformed input); an error discovered mid-stream
// is delivered as a final TokenError token before the channel is closed.
type Provider interface {
	// Complete streams tokens for a single turn. messages is the full
	// conversation in order; tools is the set of callable skills (nil if
	// none are registered).
	Complete(ctx context.Context, messages []chatmodel.Message, tools []ToolDefinition) (<-chan Token, error)

	// Label identifies this provider for warnings and diagnostics (e.g.
	// "openai:gpt-4o").
	Label() string
}
