package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"
)

const compress = false

// VectorDBManager keeps every owner's chunks in one chromem-go collection and
// scopes reads and deletes by metadata filter.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
	embed         chromem.EmbeddingFunc
}

// NewVectorDBManager opens (or creates) the collection. With inMemory the data
// lives only in the process unless exported. embed is only used by chromem when
// a document arrives without a vector; pass the same embedder used for indexing.
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
		embed:         embed,
	}
	if _, err := m.GetOrCreateCollection(collectionName, embed); err != nil {
		return nil, err
	}
	return m, nil
}

// GetOrCreateCollection switches the manager to the named collection.
func (m *VectorDBManager) GetOrCreateCollection(collectionName string, embed chromem.EmbeddingFunc) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Upsert adds records; a record whose ID already exists replaces the old one.
func (m *VectorDBManager) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Content,
			Metadata:  rec.Metadata,
			Embedding: rec.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns up to topK records matching every where entry, most similar first.
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, where map[string]string, topK int) ([]models.RetrievalResult, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	// chromem rejects nResults larger than the whole collection
	n := min(topK, m.collection.Count())
	if n == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       n,
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.RetrievalResult, len(results))
	for i, r := range results {
		out[i] = models.RetrievalResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return out, nil
}

// DeleteDocument removes every chunk of one owner's document.
func (m *VectorDBManager) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" || documentID == "" {
		return errors.New("owner id and document id are required")
	}
	where := map[string]string{
		models.MetaOwnerID:    ownerID,
		models.MetaDocumentID: documentID,
	}
	if err := m.collection.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", documentID, err)
	}
	return nil
}

// Count is the number of vectors across all owners.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// DeleteCollection drops the collection and all of its vectors.
func (m *VectorDBManager) DeleteCollection() error {
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// SnapshotPath is where Export writes and Import reads.
func (m *VectorDBManager) SnapshotPath() string {
	return m.filePath
}

// Export writes the collection to an encrypted snapshot file under dbPath.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return errors.New("encryption key is required")
	}
	if m.dbPath == "" {
		return errors.New("db path is required")
	}

	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", m.filePath).
		Bool("compress", m.compress).
		Msg("Exporting vector collection")

	if err := helper.CreateFolder(m.dbPath); err != nil {
		return err
	}
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import loads a snapshot written by Export.
func (m *VectorDBManager) Import(ctx context.Context) error {
	name := m.collection.Name
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// the import replaces the collection object
	if c := m.db.GetCollection(name, m.embed); c != nil {
		m.collection = c
	}
	return nil
}
