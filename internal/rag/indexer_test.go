package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/models"
)

func TestIndexer_Index(t *testing.T) {
	ctx := context.Background()
	emb := newLetterEmbedder()
	idx := newMemoryIndex(t)
	ix := NewIndexer(emb, idx, 2, 0)

	recs := chunkRecords("u1", "d1", "alpha", "beta", "gamma")
	res, err := ix.Index(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, &IndexResult{DocumentID: "d1", ChunksIndexed: 3}, res)
	assert.Equal(t, 2, emb.calls, "three chunks in batches of two")
	assert.Equal(t, 3, idx.Count())

	// same (document, chunk index) overwrites
	res, err = ix.Index(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ChunksIndexed)
	assert.Equal(t, 3, idx.Count())

	hits, err := idx.Query(ctx, letterVector("gamma"), map[string]string{models.MetaOwnerID: "u1"}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1-2", hits[0].ID)
	assert.Equal(t, "gamma", hits[0].Content)
	assert.Equal(t, "fake:letters", hits[0].Metadata[models.MetaEmbeddingModel])
	assert.Equal(t, "3", hits[0].Metadata[models.MetaTotalChunks])
}

func TestIndexer_Empty(t *testing.T) {
	emb := newLetterEmbedder()
	res, err := NewIndexer(emb, newMemoryIndex(t), 0, 0).Index(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ChunksIndexed)
	assert.Zero(t, emb.calls)
}

func TestIndexer_PartialFailure(t *testing.T) {
	emb := newLetterEmbedder()
	emb.failOn = 2
	idx := newMemoryIndex(t)

	_, err := NewIndexer(emb, idx, 2, 0).Index(context.Background(), chunkRecords("u1", "d1", "a", "b", "c"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrIndexing)

	var ie *models.IndexingError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "d1", ie.DocumentID)
	assert.Equal(t, 3, ie.Attempted)
	assert.Equal(t, 2, ie.Indexed)
	assert.Equal(t, 2, idx.Count())
}

func TestIndexer_UpsertFailure(t *testing.T) {
	boom := errors.New("index offline")
	_, err := NewIndexer(newLetterEmbedder(), failingIndex{err: boom}, 10, 0).
		Index(context.Background(), chunkRecords("u1", "d1", "a"))
	assert.ErrorIs(t, err, models.ErrIndexing)
	assert.ErrorIs(t, err, boom)
}
