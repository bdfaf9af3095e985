package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/models"
)

func TestAnnotate(t *testing.T) {
	records, err := Annotate([]string{"alpha", "beta", "gamma"}, "u1", "d1", "notes.txt")
	require.NoError(t, err)
	require.Len(t, records, 3)

	for i, rec := range records {
		assert.Equal(t, i, rec.ChunkIndex)
		assert.Equal(t, 3, rec.TotalChunks)
		assert.Equal(t, "u1", rec.OwnerID)
		assert.Equal(t, "d1", rec.DocumentID)
		assert.Equal(t, "notes.txt", rec.Filename)
	}
	assert.Equal(t, "beta", records[1].Text)
}

func TestAnnotate_Empty(t *testing.T) {
	records, err := Annotate(nil, "u1", "d1", "notes.txt")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAnnotate_MissingFields(t *testing.T) {
	tests := []struct {
		name                    string
		owner, document, source string
		chunks                  []string
	}{
		{"missing owner", "", "d1", "f.txt", []string{"x"}},
		{"missing document", "u1", "", "f.txt", []string{"x"}},
		{"missing filename", "u1", "d1", "", []string{"x"}},
		{"empty chunk", "u1", "d1", "f.txt", []string{"x", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Annotate(tt.chunks, tt.owner, tt.document, tt.source)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestCreateMetadata(t *testing.T) {
	rec := models.ChunkRecord{Text: "t", ChunkIndex: 2, TotalChunks: 5, DocumentID: "d1", OwnerID: "u1", Filename: "f.pdf"}
	meta := CreateMetadata(rec, "nomic-embed-text")

	assert.Equal(t, map[string]string{
		models.MetaOwnerID:        "u1",
		models.MetaDocumentID:     "d1",
		models.MetaChunkIndex:     "2",
		models.MetaTotalChunks:    "5",
		models.MetaFilename:       "f.pdf",
		models.MetaEmbeddingModel: "nomic-embed-text",
	}, meta)
	assert.Equal(t, "d1-2", VectorID("d1", 2))
}
