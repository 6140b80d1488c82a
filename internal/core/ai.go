package core

import "context"

// StreamChunk is one fragment of a streamed generation. Err is set on the
// terminal chunk when the producer failed mid-stream; consumers are expected
// to keep whatever text already arrived.
type StreamChunk struct {
	Text string
	Err  error
}

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)

	// GenerateStream produces text chunks on the returned channel. The
	// channel is always closed; cancellation of ctx stops the producer.
	GenerateStream(ctx context.Context, systemPrompt string, userPrompt string) <-chan StreamChunk
}
