package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"rag-chatbot/internal/models"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string    `bun:"id,pk"`
	OwnerID       string    `bun:"owner_id,notnull"`
	Filename      string    `bun:"filename,notnull"`
	Format        string    `bun:"format,notnull"`
	Size          int64     `bun:"size,notnull"`
	StoragePath   string    `bun:"storage_path"`
	Title         string    `bun:"title"`
	Status        string    `bun:"status,notnull"`
	TotalChunks   int       `bun:"total_chunks,notnull"`
	ErrorMessage  string    `bun:"error_message"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func toDocumentRow(d *models.Document) *Document {
	return &Document{
		ID:           d.ID,
		OwnerID:      d.OwnerID,
		Filename:     d.Filename,
		Format:       string(d.Format),
		Size:         d.Size,
		StoragePath:  d.StoragePath,
		Title:        d.Title,
		Status:       string(d.Status),
		TotalChunks:  d.TotalChunks,
		ErrorMessage: d.Error,
		CreatedAt:    d.CreatedAt,
	}
}

func (d *Document) toModel() models.Document {
	return models.Document{
		ID:          d.ID,
		OwnerID:     d.OwnerID,
		Filename:    d.Filename,
		Format:      models.Format(d.Format),
		Size:        d.Size,
		StoragePath: d.StoragePath,
		Title:       d.Title,
		Status:      models.DocumentStatus(d.Status),
		TotalChunks: d.TotalChunks,
		Error:       d.ErrorMessage,
		CreatedAt:   d.CreatedAt,
	}
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(toDocumentRow(doc)).Exec(ctx); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	return nil
}

// UpdateDocumentStatus records the outcome of ingestion: status, chunk count,
// error message and title.
func (s *Store) UpdateDocumentStatus(ctx context.Context, doc *models.Document) error {
	res, err := s.db.NewUpdate().
		Model((*Document)(nil)).
		Set("status = ?", string(doc.Status)).
		Set("total_chunks = ?", doc.TotalChunks).
		Set("error_message = ?", doc.Error).
		Set("title = ?", doc.Title).
		Where("id = ?", doc.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update document %s: %w", doc.ID, err)
	}
	return expectRow(res, "document "+doc.ID)
}

func (s *Store) GetDocument(ctx context.Context, ownerID, id string) (*models.Document, error) {
	row := new(Document)
	err := s.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	doc := row.toModel()
	return &doc, nil
}

// ListDocuments returns the owner's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	var rows []Document
	err := s.db.NewSelect().
		Model(&rows).
		Where("owner_id = ?", ownerID).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, len(rows))
	for i := range rows {
		docs[i] = rows[i].toModel()
	}
	return docs, nil
}

func (s *Store) DeleteDocument(ctx context.Context, ownerID, id string) error {
	res, err := s.db.NewDelete().
		Model((*Document)(nil)).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return expectRow(res, "document "+id)
}

func expectRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}
