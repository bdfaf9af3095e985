package chromemdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/models"
)

func newMemoryManager(t *testing.T) *VectorDBManager {
	t.Helper()
	m, err := NewVectorDBManager(t.TempDir(), "test", true, "", nil)
	require.NoError(t, err)
	return m
}

func record(owner, doc string, idx int, vec []float32) models.VectorRecord {
	return models.VectorRecord{
		ID:        fmt.Sprintf("%s-%d", doc, idx),
		Content:   fmt.Sprintf("%s chunk %d", doc, idx),
		Embedding: vec,
		Metadata: map[string]string{
			models.MetaOwnerID:    owner,
			models.MetaDocumentID: doc,
			models.MetaChunkIndex: fmt.Sprint(idx),
		},
	}
}

func TestQuery_EmptyCollection(t *testing.T) {
	m := newMemoryManager(t)
	results, err := m.Query(context.Background(), []float32{1, 0}, map[string]string{models.MetaOwnerID: "u1"}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpsert_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := newMemoryManager(t)

	recs := []models.VectorRecord{
		record("u1", "d1", 0, []float32{1, 0, 0}),
		record("u1", "d1", 1, []float32{0, 1, 0}),
	}
	require.NoError(t, m.Upsert(ctx, recs))
	require.NoError(t, m.Upsert(ctx, recs))
	assert.Equal(t, 2, m.Count())

	updated := record("u1", "d1", 1, []float32{0, 1, 0})
	updated.Content = "rewritten"
	require.NoError(t, m.Upsert(ctx, []models.VectorRecord{updated}))
	assert.Equal(t, 2, m.Count())

	results, err := m.Query(ctx, []float32{0, 1, 0}, nil, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rewritten", results[0].Content)
}

func TestQuery_OrderAndOwnerFilter(t *testing.T) {
	ctx := context.Background()
	m := newMemoryManager(t)

	require.NoError(t, m.Upsert(ctx, []models.VectorRecord{
		record("u1", "a", 0, []float32{1, 0, 0}),
		record("u1", "a", 1, []float32{0.8, 0.6, 0}),
		record("u2", "b", 0, []float32{1, 0, 0}),
		record("u1", "c", 0, []float32{0, 0, 1}),
	}))

	results, err := m.Query(ctx, []float32{1, 0, 0}, map[string]string{models.MetaOwnerID: "u1"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a-0", results[0].ID)
	assert.Equal(t, "a-1", results[1].ID)
	assert.Equal(t, "c-0", results[2].ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	for _, r := range results {
		assert.Equal(t, "u1", r.Metadata[models.MetaOwnerID])
	}

	results, err = m.Query(ctx, []float32{1, 0, 0}, map[string]string{models.MetaOwnerID: "nobody"}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQuery_InvalidInput(t *testing.T) {
	m := newMemoryManager(t)
	_, err := m.Query(context.Background(), nil, nil, 3)
	assert.Error(t, err)
	_, err = m.Query(context.Background(), []float32{1}, nil, 0)
	assert.Error(t, err)
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	m := newMemoryManager(t)

	require.NoError(t, m.Upsert(ctx, []models.VectorRecord{
		record("u1", "d1", 0, []float32{1, 0}),
		record("u1", "d1", 1, []float32{0, 1}),
		record("u2", "e1", 0, []float32{1, 1}),
		record("u1", "d2", 0, []float32{1, 1}),
	}))
	require.NoError(t, m.DeleteDocument(ctx, "u1", "d1"))
	assert.Equal(t, 2, m.Count())

	// another owner's document id never matches
	require.NoError(t, m.DeleteDocument(ctx, "u1", "e1"))
	assert.Equal(t, 2, m.Count())

	assert.Error(t, m.DeleteDocument(ctx, "", "d1"))
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	key := "0123456789abcdef0123456789abcdef"

	src, err := NewVectorDBManager(dir, "snap", true, key, nil)
	require.NoError(t, err)
	require.NoError(t, src.Upsert(ctx, []models.VectorRecord{record("u1", "d1", 0, []float32{1, 0})}))
	require.NoError(t, src.Export(ctx))
	assert.FileExists(t, src.SnapshotPath())

	dst, err := NewVectorDBManager(dir, "snap", true, key, nil)
	require.NoError(t, err)
	require.NoError(t, dst.Import(ctx))
	assert.Equal(t, 1, dst.Count())

	noKey, err := NewVectorDBManager(dir, "snap", true, "", nil)
	require.NoError(t, err)
	assert.Error(t, noKey.Export(ctx))
}
