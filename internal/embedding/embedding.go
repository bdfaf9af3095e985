package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"rag-chatbot/internal/config"
)

const defaultBatchSize = 32

// Embedder is the one embedding model shared by indexing and retrieval. Its
// Model name is stored with every vector so queries only ever compare vectors
// from the same embedding space.
type Embedder struct {
	embeddings.Embedder
	model string
}

// Wrap names an existing embedder.
func Wrap(e embeddings.Embedder, model string) *Embedder {
	return &Embedder{Embedder: e, model: model}
}

// Model identifies the embedding space.
func (e *Embedder) Model() string {
	return e.model
}

// New builds the embedder described by cfg.
func New(cfg *config.LLMConfig, batchSize int) (*Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch cfg.Provider {
	case "openai":
		client, err = newOpenAIClient(cfg)
	case "ollama":
		client, err = newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return Wrap(embedder, cfg.Provider+":"+cfg.Model), nil
}

func newOpenAIClient(cfg *config.LLMConfig) (*openai.LLM, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

func newOllamaClient(cfg *config.LLMConfig) (*ollama.LLM, error) {
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	return ollama.New(opts...)
}

// EmbedQuery embeds a single query text and rejects empty vectors.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding model %s returned an empty vector", e.model)
	}
	return vec, nil
}

// EmbedDocuments embeds texts in order and checks one vector came back per text.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := e.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding model %s returned %d vectors for %d texts", e.model, len(vecs), len(texts))
	}
	return vecs, nil
}
