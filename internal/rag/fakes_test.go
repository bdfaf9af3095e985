package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/models"
)

// letterEmbedder embeds text as letter frequencies plus a constant bias so no
// vector is ever zero.
type letterEmbedder struct {
	model   string
	failOn  int // 1-based EmbedDocuments call that fails; 0 never
	err     error
	mu      sync.Mutex
	calls   int
	queries int
}

func newLetterEmbedder() *letterEmbedder {
	return &letterEmbedder{model: "fake:letters"}
}

func letterVector(text string) []float32 {
	vec := make([]float32, 27)
	vec[26] = 0.1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	return vec
}

func (e *letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	call := e.calls
	e.mu.Unlock()
	if e.failOn > 0 && call == e.failOn {
		return nil, errors.New("embedding service unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.queries++
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	return letterVector(text), nil
}

func (e *letterEmbedder) Model() string { return e.model }

func newMemoryIndex(t *testing.T) *chromemdb.VectorDBManager {
	t.Helper()
	m, err := chromemdb.NewVectorDBManager("", "test", true, "", nil)
	require.NoError(t, err)
	return m
}

type failingIndex struct{ err error }

func (f failingIndex) Upsert(context.Context, []models.VectorRecord) error { return f.err }
func (f failingIndex) Query(context.Context, []float32, map[string]string, int) ([]models.RetrievalResult, error) {
	return nil, f.err
}
func (f failingIndex) DeleteDocument(context.Context, string, string) error { return f.err }

// streamingModel replays fragments through the streaming callback.
type streamingModel struct {
	fragments []string
	failAfter int // fail once this many fragments went out; <0 never
	noStream  bool
	messages  []llms.MessageContent
}

func (m *streamingModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	opts := llms.CallOptions{}
	for _, opt := range options {
		opt(&opts)
	}
	for i, f := range m.fragments {
		if m.failAfter >= 0 && i == m.failAfter {
			return nil, errors.New("model connection reset")
		}
		if opts.StreamingFunc != nil && !m.noStream {
			if err := opts.StreamingFunc(ctx, []byte(f)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: strings.Join(m.fragments, "")}}}, nil
}

func (m *streamingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func chunkRecords(owner, doc string, texts ...string) []models.ChunkRecord {
	recs := make([]models.ChunkRecord, len(texts))
	for i, t := range texts {
		recs[i] = models.ChunkRecord{
			Text:        t,
			ChunkIndex:  i,
			TotalChunks: len(texts),
			DocumentID:  doc,
			OwnerID:     owner,
			Filename:    doc + ".txt",
		}
	}
	return recs
}
