package parser

import (
	"fmt"
	"strconv"

	"rag-chatbot/internal/models"
)

// Annotate attaches ownership and position metadata to every chunk. It fails
// rather than emit a record with a missing field.
func Annotate(chunks []string, ownerID, documentID, filename string) ([]models.ChunkRecord, error) {
	switch {
	case ownerID == "":
		return nil, fmt.Errorf("%w: owner id is required", models.ErrValidation)
	case documentID == "":
		return nil, fmt.Errorf("%w: document id is required", models.ErrValidation)
	case filename == "":
		return nil, fmt.Errorf("%w: filename is required", models.ErrValidation)
	}

	records := make([]models.ChunkRecord, len(chunks))
	for i, text := range chunks {
		if text == "" {
			return nil, fmt.Errorf("%w: chunk %d of document %s is empty", models.ErrValidation, i, documentID)
		}
		records[i] = models.ChunkRecord{
			Text:        text,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			DocumentID:  documentID,
			OwnerID:     ownerID,
			Filename:    filename,
		}
	}
	return records, nil
}

// VectorID is the index key of a chunk; re-indexing the same chunk reuses it.
func VectorID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s-%d", documentID, chunkIndex)
}

// CreateMetadata flattens a chunk record into index metadata, tagged with the
// embedding model that produced its vector.
func CreateMetadata(rec models.ChunkRecord, embeddingModel string) map[string]string {
	return map[string]string{
		models.MetaOwnerID:        rec.OwnerID,
		models.MetaDocumentID:     rec.DocumentID,
		models.MetaChunkIndex:     strconv.Itoa(rec.ChunkIndex),
		models.MetaTotalChunks:    strconv.Itoa(rec.TotalChunks),
		models.MetaFilename:       rec.Filename,
		models.MetaEmbeddingModel: embeddingModel,
	}
}
