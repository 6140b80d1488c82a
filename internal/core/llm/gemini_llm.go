package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/saidurgaphani/CS2026/internal/core"
)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

// NewGeminiLLM builds a Gemini-backed provider. The key and model are plain
// arguments so tests and callers can substitute their own; there is no
// process-global model state.
func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.model(systemPrompt)

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

// GenerateStream emits text fragments as the model produces them. A failure
// mid-stream is delivered as the final chunk's Err; text already sent stays
// with the consumer.
func (g *GeminiLLM) GenerateStream(ctx context.Context, systemPrompt, userPrompt string) <-chan core.StreamChunk {
	out := make(chan core.StreamChunk, 8)
	m := g.model(systemPrompt)

	go func() {
		defer close(out)

		it := m.GenerateContentStream(ctx, genai.Text(userPrompt))
		for {
			resp, err := it.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				select {
				case out <- core.StreamChunk{Err: fmt.Errorf("gemini stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, p := range resp.Candidates[0].Content.Parts {
				t, ok := p.(genai.Text)
				if !ok || t == "" {
					continue
				}
				select {
				case out <- core.StreamChunk{Text: string(t)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (g *GeminiLLM) model(systemPrompt string) *genai.GenerativeModel {
	m := g.client.GenerativeModel(g.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}
	return m
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
