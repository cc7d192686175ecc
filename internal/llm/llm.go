package llm

import (
	"context"

	"ai-fitness-coach/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// StructuredRequest is a chat-style completion request whose output the
// provider must constrain to Schema.
type StructuredRequest struct {
	System string
	User   string
	// SchemaName identifies the schema to providers that require a name.
	SchemaName string
	// Schema is a JSON Schema document.
	Schema          []byte
	Temperature     float32
	MaxOutputTokens int
}

// StructuredGenerator produces a JSON document that conforms to the request
// schema. Errors are classified with IsRetryable.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
