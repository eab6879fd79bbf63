// Package llm defines the Provider interface for the language-model backends
// that fill report templates from a transcript.
//
// A provider wraps a remote or local model API (OpenAI, Mistral via any-llm,
// Vertex AI Gemini, a local Ollama instance, ...) behind a single blocking
// completion call. The extraction stage only ever needs one prompt in and one
// block of text out, so there is no streaming or tool-calling surface here.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
// Counts are in the model's native token unit.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. For field extraction this is a
	// single user message holding the transcript and the field schema.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation. Providers without a dedicated system slot prepend it as a
	// "system"-role message.
	SystemPrompt string

	// JSONOutput asks the backend to constrain its output to a JSON document
	// when it supports doing so. Backends that cannot honour it ignore it.
	JSONOutput bool
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Model is the model identifier reported by the backend, if any.
	Model string

	Usage Usage
}

// Provider is the abstraction over any language-model backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	//
	// Returns an error if the request fails at the transport level or if ctx is
	// cancelled before the completion arrives. An unparsable or empty reply is
	// not an error; interpreting the content is the caller's job.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
