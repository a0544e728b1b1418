// Package llm exposes the single external capability the agent engine needs
// from a large-language-model provider: send a prompt, get text back. The
// core never requires function-calling or streaming from the provider — it
// issues plain-text prompts and parses plain-text replies by marker, so any
// provider that can answer a text completion is interchangeable behind this
// interface.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyPrompt is returned when Send/SendChat is called with no content.
var ErrEmptyPrompt = errors.New("llm: empty prompt")

// ErrProviderUnavailable classifies a transient transport failure (timeout,
// connection refused, 5xx) so callers can route it through a retry policy.
var ErrProviderUnavailable = errors.New("llm: provider unavailable")

// Message is one turn of chat-style history, used only by SendChat.
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

// Client is the narrow contract the planner and decision engine depend on.
// Implementations must be safe for concurrent use — the ReAct cycle and the
// Decision Engine may both be mid-call at once.
type Client interface {
	// Send issues a single plain-text prompt and returns the provider's
	// plain-text reply.
	Send(ctx context.Context, prompt string) (string, error)

	// SendChat is the chat-style variant for providers that distinguish a
	// system prompt from conversation history. Implementations that only
	// support single-shot completion may flatten system+history+user into
	// one prompt and call Send.
	SendChat(ctx context.Context, system, user string, history []Message) (string, error)
}
