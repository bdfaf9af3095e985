package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/config"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
}

func (s *stubEmbedder) EmbedDocuments(_ context.Context, _ []string) ([][]float32, error) {
	return s.vectors, s.err
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if len(s.vectors) == 0 {
		return nil, s.err
	}
	return s.vectors[0], s.err
}

func TestWrap_Model(t *testing.T) {
	e := Wrap(&stubEmbedder{}, "ollama:nomic-embed-text")
	assert.Equal(t, "ollama:nomic-embed-text", e.Model())
}

func TestEmbedDocuments_CountMismatch(t *testing.T) {
	e := Wrap(&stubEmbedder{vectors: [][]float32{{1, 2}}}, "m")
	_, err := e.EmbedDocuments(context.Background(), []string{"a", "b"})
	assert.Error(t, err)

	vecs, err := e.EmbedDocuments(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
}

func TestEmbedQuery(t *testing.T) {
	_, err := Wrap(&stubEmbedder{}, "m").EmbedQuery(context.Background(), "q")
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = Wrap(&stubEmbedder{err: boom}, "m").EmbedQuery(context.Background(), "q")
	assert.ErrorIs(t, err, boom)

	vec, err := Wrap(&stubEmbedder{vectors: [][]float32{{0.5}}}, "m").EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)
}

func TestNew_Providers(t *testing.T) {
	e, err := New(&config.LLMConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "nomic-embed-text"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", e.Model())

	e, err = New(&config.LLMConfig{Provider: "openai", Key: "Bearer sk-test", Model: "text-embedding-3-small"}, 16)
	require.NoError(t, err)
	assert.Equal(t, "openai:text-embedding-3-small", e.Model())

	_, err = New(&config.LLMConfig{Provider: "cohere"}, 0)
	assert.Error(t, err)
}
