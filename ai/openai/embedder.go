package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/corpus/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns document text into vectors through any OpenAI-compatible
// embeddings endpoint (Ollama, LocalAI, vLLM) via langchaingo.
type Embedder struct {
	client embeddings.Embedder
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder builds an embedder for the configured endpoint and model.
// The API token is fixed to "none": the local services this toolkit targets
// ignore it.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	llm, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	client, err := embeddings.NewEmbedder(llm, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("wrapping embedding client: %w", err)
	}

	return &Embedder{
		client: client,
		logger: slog.Default().With("component", "embedder", "model", config.EmbeddingModel),
	}, nil
}

// EmbedText embeds a single document's contents.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedding service returned no vector for document", "chars", len(text))
		return []float32{}, nil
	}
	return vectors[0], nil
}

// EmbedTexts embeds a batch of document contents in one request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("embedding documents", "count", len(texts))

	vectors, err := e.client.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("embedding request failed", "count", len(texts), "err", err)
		return nil, err
	}

	return vectors, nil
}
