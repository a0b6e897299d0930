// Package llm abstracts text generation over Anthropic and OpenAI-compatible
// chat APIs. The retrieval and auto-fix pipelines only need single-shot
// completion, so the interface stays deliberately small.
package llm

import "context"

// Message is one turn of a chat conversation.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Request is a single generation request.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Client generates text from a chat-style prompt.
type Client interface {
	// Generate returns the assistant's text for the given request.
	Generate(ctx context.Context, req Request) (string, error)

	// Model returns the model identifier in use.
	Model() string
}
