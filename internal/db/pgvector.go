package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"rag-chatbot/internal/models"
)

// Chunk is one embedded chunk stored in Postgres with pgvector.
type Chunk struct {
	bun.BaseModel  `bun:"table:document_chunks,alias:dc"`
	ID             string          `bun:"id,pk"`
	OwnerID        string          `bun:"owner_id,notnull"`
	DocumentID     string          `bun:"document_id,notnull"`
	ChunkIndex     int             `bun:"chunk_index,notnull"`
	TotalChunks    int             `bun:"total_chunks,notnull"`
	Filename       string          `bun:"filename"`
	EmbeddingModel string          `bun:"embedding_model,notnull"`
	Content        string          `bun:"content,notnull"`
	Embedding      pgvector.Vector `bun:"embedding,type:vector"`
	Score          float32         `bun:"score,scanonly"`
}

// columns a metadata filter may name
var filterColumns = map[string]bool{
	models.MetaOwnerID:        true,
	models.MetaDocumentID:     true,
	models.MetaChunkIndex:     true,
	models.MetaTotalChunks:    true,
	models.MetaFilename:       true,
	models.MetaEmbeddingModel: true,
}

// PGVectorIndex is the Postgres alternative to the chromem collection. It
// needs the pgvector extension.
type PGVectorIndex struct {
	db         *bun.DB
	dimensions int
	// pgvector >= 0.8 keeps scanning the HNSW graph until filtered rows fill the limit
	iterativeScan bool
}

const (
	minEFSearch = 100
	maxEFSearch = 1000
)

func NewPGVectorIndex(db *bun.DB, dimensions int) *PGVectorIndex {
	return &PGVectorIndex{db: db, dimensions: dimensions}
}

// Init enables the extension and creates the chunk table with an HNSW index.
func (p *PGVectorIndex) Init(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
	id text PRIMARY KEY,
	owner_id text NOT NULL,
	document_id text NOT NULL,
	chunk_index integer NOT NULL,
	total_chunks integer NOT NULL,
	filename text,
	embedding_model text NOT NULL,
	content text NOT NULL,
	embedding vector(%d)
)`, p.dimensions),
		"CREATE INDEX IF NOT EXISTS document_chunks_owner_idx ON document_chunks (owner_id, document_id)",
		"CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx ON document_chunks USING hnsw (embedding vector_cosine_ops)",
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init pgvector: %w", err)
		}
	}

	var version string
	err := p.db.NewSelect().
		TableExpr("pg_extension").
		ColumnExpr("extversion").
		Where("extname = ?", "vector").
		Scan(ctx, &version)
	if err != nil {
		return fmt.Errorf("pgvector version: %w", err)
	}
	p.iterativeScan = versionAtLeast(version, 0, 8)
	return nil
}

// scanSettings widens the approximate search so owner and model filters,
// which apply after the HNSW scan, still leave topK rows.
func (p *PGVectorIndex) scanSettings(topK int) []string {
	stmts := []string{fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", efSearch(topK))}
	if p.iterativeScan {
		stmts = append(stmts, "SET LOCAL hnsw.iterative_scan = relaxed_order")
	}
	return stmts
}

func efSearch(topK int) int {
	return min(max(topK*10, minEFSearch), maxEFSearch)
}

// versionAtLeast compares the major.minor prefix of an extension version.
func versionAtLeast(version string, major, minor int) bool {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return false
	}
	gotMajor, err1 := strconv.Atoi(parts[0])
	gotMinor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return false
	}
	if gotMajor != major {
		return gotMajor > major
	}
	return gotMinor >= minor
}

func (p *PGVectorIndex) Upsert(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]Chunk, len(records))
	for i, rec := range records {
		if p.dimensions > 0 && len(rec.Embedding) != p.dimensions {
			return fmt.Errorf("record %s has %d dimensions, index expects %d", rec.ID, len(rec.Embedding), p.dimensions)
		}
		idx, _ := strconv.Atoi(rec.Metadata[models.MetaChunkIndex])
		total, _ := strconv.Atoi(rec.Metadata[models.MetaTotalChunks])
		rows[i] = Chunk{
			ID:             rec.ID,
			OwnerID:        rec.Metadata[models.MetaOwnerID],
			DocumentID:     rec.Metadata[models.MetaDocumentID],
			ChunkIndex:     idx,
			TotalChunks:    total,
			Filename:       rec.Metadata[models.MetaFilename],
			EmbeddingModel: rec.Metadata[models.MetaEmbeddingModel],
			Content:        rec.Content,
			Embedding:      pgvector.NewVector(rec.Embedding),
		}
	}

	_, err := p.db.NewInsert().
		Model(&rows).
		ExcludeColumn("score").
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Set("total_chunks = EXCLUDED.total_chunks").
		Set("filename = EXCLUDED.filename").
		Set("embedding_model = EXCLUDED.embedding_model").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// Query ranks by cosine distance; Score is reported as cosine similarity.
func (p *PGVectorIndex) Query(ctx context.Context, embedding []float32, where map[string]string, topK int) ([]models.RetrievalResult, error) {
	if len(embedding) == 0 {
		return nil, errors.New("query embedding is required")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	for k := range where {
		if !filterColumns[k] {
			return nil, fmt.Errorf("unknown filter key %q", k)
		}
	}

	vec := pgvector.NewVector(embedding)
	var rows []Chunk
	// SET LOCAL only lasts for the transaction
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range p.scanSettings(topK) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		q := tx.NewSelect().
			Model(&rows).
			Column("id", "owner_id", "document_id", "chunk_index", "total_chunks", "filename", "embedding_model", "content").
			ColumnExpr("1 - (embedding <=> ?) AS score", vec)
		for k, v := range where {
			q = q.Where("? = ?", bun.Ident(k), v)
		}
		return q.OrderExpr("embedding <=> ?", vec).Limit(topK).Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	out := make([]models.RetrievalResult, len(rows))
	for i, r := range rows {
		out[i] = models.RetrievalResult{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.Score,
			Metadata: map[string]string{
				models.MetaOwnerID:        r.OwnerID,
				models.MetaDocumentID:     r.DocumentID,
				models.MetaChunkIndex:     strconv.Itoa(r.ChunkIndex),
				models.MetaTotalChunks:    strconv.Itoa(r.TotalChunks),
				models.MetaFilename:       r.Filename,
				models.MetaEmbeddingModel: r.EmbeddingModel,
			},
		}
	}
	return out, nil
}

func (p *PGVectorIndex) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" || documentID == "" {
		return errors.New("owner id and document id are required")
	}
	_, err := p.db.NewDelete().
		Model((*Chunk)(nil)).
		Where("owner_id = ?", ownerID).
		Where("document_id = ?", documentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}
	return nil
}

// Count is the number of stored chunks across all owners.
func (p *PGVectorIndex) Count(ctx context.Context) (int, error) {
	return p.db.NewSelect().Model((*Chunk)(nil)).Count(ctx)
}
