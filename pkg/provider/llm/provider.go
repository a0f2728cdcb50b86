// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API and exposes a single
// completion call, which the feedback analyzer uses to rate a finished
// interview transcript without coupling to any specific SDK.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message represents a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. The last message is typically from
	// the "user" role and drives the response.
	Messages []Message

	// SystemPrompt is an optional instruction injected before Messages.
	SystemPrompt string

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// JSON asks the backend for a single JSON object as the reply. Backends
	// without a native JSON mode get an extra instruction instead.
	JSON bool
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage

	// FinishReason is the backend's stop reason, e.g. "stop" or "length",
	// when it reports one.
	FinishReason string
}

// JSONInstruction is appended to the system prompt by backends that cannot
// enforce [CompletionRequest.JSON] natively.
const JSONInstruction = "Reply with a single JSON object and nothing else."

// Provider is the abstraction over any LLM backend.
//
// Complete must return promptly when ctx is cancelled.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
