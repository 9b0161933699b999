// Package llm abstracts the language model provider behind a small client
// interface with completion and streaming calls.
package llm

import (
	"context"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// Request is a single model call.
type Request struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Messages    []Message
	// ForceJSON asks the provider for a JSON-object response format where
	// supported. Callers still run extraction on the result.
	ForceJSON bool
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeError ChunkType = "error"
)

// TextChunk is a chunk of the model's text response.
type TextChunk struct{ Content string }

// ErrorChunk signals a provider error mid-stream.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType  { return ChunkTypeText }
func (c *ErrorChunk) chunkType() ChunkType { return ChunkTypeError }

// Client is the provider interface. Complete is used by the structured
// stages (planner, judge); Stream by the chat path.
type Client interface {
	// Complete returns the full response text for a request.
	Complete(ctx context.Context, req Request) (string, error)

	// Stream returns a channel of chunks, closed when the stream completes.
	// Errors are delivered as ErrorChunk values in the channel.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)

	// Close releases provider resources.
	Close() error
}
