package llm

import "context"

// Provider is the interface that backend services must implement.
// The selector and chain code are agnostic to the concrete backend.
type Provider interface {
	// Name returns the provider's unique name.
	Name() string

	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool

	// Complete sends a completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Embed computes embeddings for the request inputs.
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}
