package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
)

// Embedder is the embedding model shared by indexing and retrieval.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// VectorIndex is a similarity index with metadata filtering. Both the chromem
// collection and the pgvector table implement it.
type VectorIndex interface {
	Upsert(ctx context.Context, records []models.VectorRecord) error
	Query(ctx context.Context, embedding []float32, where map[string]string, topK int) ([]models.RetrievalResult, error)
	DeleteDocument(ctx context.Context, ownerID, documentID string) error
}

type IndexResult struct {
	DocumentID    string `json:"document_id"`
	ChunksIndexed int    `json:"chunks_indexed"`
}

type Indexer struct {
	embedder  Embedder
	index     VectorIndex
	batchSize int
	timeout   time.Duration
}

func NewIndexer(embedder Embedder, index VectorIndex, batchSize int, timeout time.Duration) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Indexer{embedder: embedder, index: index, batchSize: batchSize, timeout: timeout}
}

// Index embeds and upserts records batch by batch. Vector IDs derive from
// (document id, chunk index), so re-indexing overwrites.
func (ix *Indexer) Index(ctx context.Context, records []models.ChunkRecord) (*IndexResult, error) {
	if len(records) == 0 {
		return &IndexResult{}, nil
	}
	documentID := records[0].DocumentID
	indexed := 0
	fail := func(err error) (*IndexResult, error) {
		return nil, &models.IndexingError{
			DocumentID: documentID,
			Attempted:  len(records),
			Indexed:    indexed,
			Err:        err,
		}
	}

	for start := 0; start < len(records); start += ix.batchSize {
		batch := records[start:min(start+ix.batchSize, len(records))]
		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Text
		}

		vectors, err := ix.embed(ctx, texts)
		if err != nil {
			return fail(fmt.Errorf("embed chunks %d-%d: %w", start, start+len(batch)-1, err))
		}
		if len(vectors) != len(batch) {
			return fail(fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch)))
		}

		vecRecords := make([]models.VectorRecord, len(batch))
		for i, rec := range batch {
			vecRecords[i] = models.VectorRecord{
				ID:        parser.VectorID(rec.DocumentID, rec.ChunkIndex),
				Content:   rec.Text,
				Embedding: vectors[i],
				Metadata:  parser.CreateMetadata(rec, ix.embedder.Model()),
			}
		}
		if err := ix.index.Upsert(ctx, vecRecords); err != nil {
			return fail(fmt.Errorf("upsert chunks %d-%d: %w", start, start+len(batch)-1, err))
		}
		indexed += len(batch)

		log.Debug().
			Str("document_id", documentID).
			Int("indexed", indexed).
			Int("chunks", len(records)).
			Msg("Indexed batch")
	}

	return &IndexResult{DocumentID: documentID, ChunksIndexed: indexed}, nil
}

func (ix *Indexer) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if ix.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.timeout)
		defer cancel()
	}
	return ix.embedder.EmbedDocuments(ctx, texts)
}
