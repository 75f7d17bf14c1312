// Package llm defines the model-backend boundary: a Provider turns a prompt
// into text. Both the routing decision-maker and the persona responders sit
// on top of this interface, so tests can substitute deterministic fakes.
package llm

import "context"

// Message is one turn of a chat completion request.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request describes a single non-streaming completion.
type Request struct {
	// Model overrides the provider's default model when non-empty.
	Model string

	// System is the system prompt, kept separate from Messages because
	// backends disagree about where it goes.
	System string

	Messages []Message

	// MaxTokens caps the response length; providers apply their own
	// default when zero.
	MaxTokens int

	// Temperature in (0, 2]; zero means the backend's default. Callers
	// wanting greedy decoding pass the smallest positive float, which
	// backends treat as 0.
	Temperature float32

	// JSONOnly asks the backend for a JSON object response where the API
	// supports enforcing it.
	JSONOnly bool
}

// Provider is a model backend. Implementations must be safe for concurrent
// use.
type Provider interface {
	// Complete performs one completion round-trip and returns the full
	// response text.
	Complete(ctx context.Context, req *Request) (string, error)

	// Name returns a stable lowercase identifier used in config and logs.
	Name() string
}
