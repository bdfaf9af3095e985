package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"rag-chatbot/internal/models"
)

type Retriever struct {
	embedder Embedder
	index    VectorIndex
	topK     int
	maxChars int
	timeout  time.Duration
}

// NewRetriever builds a retriever. maxChars bounds the joined context in
// runes; zero leaves it unbounded.
func NewRetriever(embedder Embedder, index VectorIndex, topK, maxChars int, timeout time.Duration) *Retriever {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, maxChars: maxChars, timeout: timeout}
}

// Search returns the owner's best matching chunks, highest score first. Only
// vectors from the retriever's embedding model are considered.
func (r *Retriever) Search(ctx context.Context, question, ownerID string, topK int) ([]models.RetrievalResult, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id is required", models.ErrValidation)
	}
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question is empty", models.ErrValidation)
	}
	if topK <= 0 {
		topK = r.topK
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: embed question: %w", models.ErrRetrieval, err)
	}

	results, err := r.index.Query(ctx, vec, map[string]string{
		models.MetaOwnerID:        ownerID,
		models.MetaEmbeddingModel: r.embedder.Model(),
	}, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRetrieval, err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Retrieve joins the matching chunk texts into one context string. No match
// yields an empty string, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question, ownerID string, topK int) (string, error) {
	results, err := r.Search(ctx, question, ownerID, topK)
	if err != nil {
		return "", err
	}
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Content
	}
	return truncateRunes(strings.Join(texts, models.ContextSeparator), r.maxChars), nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
