package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/helper"
	"rag-chatbot/internal/models"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/rag"
)

const (
	parallelUploads = 4
	finishTimeout   = 30 * time.Second
)

type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	UpdateDocumentStatus(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, ownerID, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error)
	DeleteDocument(ctx context.Context, ownerID, id string) error
}

type Indexer interface {
	Index(ctx context.Context, records []models.ChunkRecord) (*rag.IndexResult, error)
}

// IndexCleaner removes a document's vectors.
type IndexCleaner interface {
	DeleteDocument(ctx context.Context, ownerID, documentID string) error
}

// Upload is one file as received from a client.
type Upload struct {
	Filename string
	Data     []byte
}

type Service struct {
	cfg       config.UploadConfig
	extractor *parser.Extractor
	chunker   *parser.Chunker
	indexer   Indexer
	cleaner   IndexCleaner
	store     DocumentStore
	now       func() time.Time
}

func NewService(cfg config.UploadConfig, extractor *parser.Extractor, chunker *parser.Chunker, indexer Indexer, cleaner IndexCleaner, store DocumentStore) *Service {
	return &Service{
		cfg:       cfg,
		extractor: extractor,
		chunker:   chunker,
		indexer:   indexer,
		cleaner:   cleaner,
		store:     store,
		now:       time.Now,
	}
}

// Validate applies the upload allowlist and size limit before anything is
// stored or extracted.
func (s *Service) Validate(up Upload) (models.Format, error) {
	if name := filepath.Base(up.Filename); strings.TrimSpace(up.Filename) == "" || name == "." || name == "/" {
		return "", fmt.Errorf("%w: filename is required", models.ErrValidation)
	}
	format, err := models.FormatFromFilename(up.Filename)
	if err != nil {
		return "", fmt.Errorf("%w: allowed extensions are %s: %w", models.ErrValidation,
			strings.Join(models.AllowedExtensions(), ", "), err)
	}
	if s.cfg.MaxBytes > 0 && int64(len(up.Data)) > s.cfg.MaxBytes {
		return "", fmt.Errorf("%w: file is %d bytes, limit is %d", models.ErrValidation, len(up.Data), s.cfg.MaxBytes)
	}
	return format, nil
}

// Ingest stores the upload, records the document and runs it through
// extraction, chunking and indexing. Only validation and storage failures are
// returned as errors; a processing failure leaves the document recorded as
// failed and is reported in the result.
func (s *Service) Ingest(ctx context.Context, ownerID string, up Upload) (*models.IngestResult, error) {
	if err := models.ValidateOwnerID(ownerID); err != nil {
		return nil, err
	}
	format, err := s.Validate(up)
	if err != nil {
		return nil, err
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	path, err := s.save(ownerID, id, up)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filepath.Base(up.Filename),
		Format:      format,
		Size:        int64(len(up.Data)),
		StoragePath: path,
		Status:      models.StatusProcessing,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	chunks, err := s.process(ctx, doc, up.Data)
	// the outcome is recorded even when the client went away mid-processing
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err != nil {
		// drop whatever part of the document reached the index
		if cerr := s.cleaner.DeleteDocument(finishCtx, ownerID, doc.ID); cerr != nil {
			log.Error().Err(cerr).Str("document_id", doc.ID).Msg("Failed to roll back partial index")
		}
		doc.Status = models.StatusFailed
		doc.Error = err.Error()
		doc.TotalChunks = 0
		log.Error().Err(err).
			Str("document_id", doc.ID).
			Str("owner_id", ownerID).
			Msg("Document processing failed")
	} else {
		doc.Status = models.StatusIndexed
		doc.TotalChunks = chunks
	}
	if uerr := s.store.UpdateDocumentStatus(finishCtx, doc); uerr != nil {
		return nil, uerr
	}

	res := &models.IngestResult{
		Filename:      doc.Filename,
		Document:      doc,
		Status:        doc.Status,
		ChunksIndexed: doc.TotalChunks,
		Err:           err,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res, nil
}

func (s *Service) process(ctx context.Context, doc *models.Document, data []byte) (int, error) {
	text, err := s.extractor.Extract(data, doc.Format)
	if err != nil {
		return 0, err
	}
	doc.Title = s.extractor.Title(text, doc.Format, doc.Filename)

	records, err := parser.Annotate(s.chunker.Split(text), doc.OwnerID, doc.ID, doc.Filename)
	if err != nil {
		return 0, err
	}
	log.Debug().
		Str("document_id", doc.ID).
		Int("chunks", len(records)).
		Msg("Document chunked")

	res, err := s.indexer.Index(ctx, records)
	if err != nil {
		return 0, err
	}
	return res.ChunksIndexed, nil
}

// save writes the upload as <owner>_<yyyymmdd_hhmmss>_<basename> under the
// upload dir. A name already taken in the same second gets the document id
// spliced in.
func (s *Service) save(ownerID, documentID string, up Upload) (string, error) {
	if err := helper.CreateFolder(s.cfg.Dir); err != nil {
		return "", err
	}
	stamp := s.now().Format("20060102_150405")
	base := filepath.Base(up.Filename)
	names := []string{
		fmt.Sprintf("%s_%s_%s", ownerID, stamp, base),
		fmt.Sprintf("%s_%s_%s_%s", ownerID, stamp, documentID, base),
	}
	for _, name := range names {
		path := filepath.Join(s.cfg.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save upload: %w", err)
		}
		_, werr := f.Write(up.Data)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(path)
			return "", fmt.Errorf("save upload: %w", werr)
		}
		return path, nil
	}
	return "", fmt.Errorf("save upload: %s already exists", names[1])
}

// IngestMany ingests up to the configured number of files concurrently. Each
// file is reported on its own; one bad file does not fail the others.
func (s *Service) IngestMany(ctx context.Context, ownerID string, uploads []Upload) ([]models.IngestResult, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", models.ErrValidation)
	}
	if s.cfg.MaxFiles > 0 && len(uploads) > s.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: maximum %d files allowed per upload", models.ErrValidation, s.cfg.MaxFiles)
	}

	results := make([]models.IngestResult, len(uploads))
	var g errgroup.Group
	g.SetLimit(parallelUploads)
	for i, up := range uploads {
		g.Go(func() error {
			res, err := s.Ingest(ctx, ownerID, up)
			if err != nil {
				results[i] = models.IngestResult{
					Filename: filepath.Base(up.Filename),
					Status:   models.StatusFailed,
					Error:    err.Error(),
					Err:      err,
				}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	return s.store.ListDocuments(ctx, ownerID)
}

// Delete removes the document's vectors, its stored file and its row.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	doc, err := s.store.GetDocument(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.cleaner.DeleteDocument(ctx, ownerID, id); err != nil {
		return fmt.Errorf("%w: %w", models.ErrIndexing, err)
	}
	if doc.StoragePath != "" {
		if err := os.Remove(doc.StoragePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", doc.StoragePath).Msg("Failed to remove stored file")
		}
	}
	return s.store.DeleteDocument(ctx, ownerID, id)
}
