package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-ingest/internal/config"
)

var ErrCountMismatch = errors.New("embedding count mismatch")

// Embedder turns a batch of chunk texts into one vector per text, in order.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
}

// New wraps an embedding client. Each EmbedBatch call is sent as a single
// request as long as the batch holds at most batchSize texts.
func New(client embeddings.EmbedderClient, model string, batchSize int) (*Embedder, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	e, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{embedder: e, model: model}, nil
}

// NewFromConfig creates an embedder for the configured provider.
func NewFromConfig(llmConfig *config.LLMConfig, batchSize int) (*Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Loaded embedding config")

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch llmConfig.Provider {
	case "ollama":
		client, err = newOllamaClient(llmConfig)
	case "openai", "":
		client, err = newOpenAIClient(llmConfig)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", llmConfig.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s client: %w", llmConfig.Provider, err)
	}
	return New(client, llmConfig.Model, batchSize)
}

func newOpenAIClient(llmConfig *config.LLMConfig) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	return openai.New(opts...)
}

func newOllamaClient(llmConfig *config.LLMConfig) (*ollama.LLM, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	return ollama.New(opts...)
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.model
}

// EmbedBatch returns exactly one vector per text. Service errors are returned
// as is, never replaced by empty vectors.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		log.Error().Err(err).Int("count", len(texts)).Str("model", e.model).Msg("Error generating embeddings")
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrCountMismatch, len(texts), len(vectors))
	}
	return vectors, nil
}
