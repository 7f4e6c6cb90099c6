// Package llm provides the LLM transport used by the pipeline agents, the
// embedding transport used by the retriever, and the multimodal calls
// backing OCR and transcription.
package llm

import "context"

// CompletionRequest is one chat completion round trip.
type CompletionRequest struct {
	// System is the fixed role and task description for the call.
	System string

	// Prompt is the user-turn content.
	Prompt string

	// Temperature is the sampling temperature for the call.
	Temperature float32

	// JSONResponse requests a JSON-typed response from the provider.
	// Responses may still arrive wrapped in prose; callers should decode
	// through ExtractJSON.
	JSONResponse bool
}

// Client performs chat completions. Implementations must be safe for
// concurrent use.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Embedder produces dense vector embeddings for retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the embedding model. An index built with one
	// model must never be reused with a different one; this identity is
	// persisted alongside the index.
	ModelID() string
}
