package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/chromemdb"
	"rag-chatbot/internal/config"
	"rag-chatbot/internal/db"
	"rag-chatbot/internal/embedding"
	"rag-chatbot/internal/ingest"
	"rag-chatbot/internal/llmservice"
	"rag-chatbot/internal/parser"
	"rag-chatbot/internal/rag"
)

// app holds every wired component for one process.
type app struct {
	store   *db.Store
	rag     *rag.RAG
	docs    *ingest.Service
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	bdb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.store = db.NewStore(bdb)
	a.closers = append(a.closers, a.store.Close)
	if err := db.InitDB(ctx, bdb); err != nil {
		return nil, err
	}

	embedder, err := embedding.New(&cfg.EmbedLLM, cfg.RAG.EmbedBatchSize)
	if err != nil {
		return nil, err
	}

	var index rag.VectorIndex
	switch cfg.VectorDB.Backend {
	case "pgvector":
		pg := db.NewPGVectorIndex(bdb, cfg.VectorDB.Dimensions)
		if err := pg.Init(ctx); err != nil {
			return nil, err
		}
		index = pg
	default:
		vc := cfg.VectorDB
		m, err := chromemdb.NewVectorDBManager(vc.Path, vc.Collection, vc.InMemory, vc.EncryptionKey, embedder.EmbedQuery)
		if err != nil {
			return nil, err
		}
		if vc.InMemory && vc.EncryptionKey != "" {
			a.restoreSnapshot(ctx, m)
		}
		index = m
	}

	llm, err := llmservice.NewModel(&cfg.ChatLLM)
	if err != nil {
		return nil, err
	}
	chunker, err := parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	a.rag = rag.NewRAG(&cfg.RAG, embedder, index, llm, a.store)
	a.docs = ingest.NewService(cfg.Upload, parser.NewExtractor(), chunker, a.rag.Indexer, a.rag, a.store)

	log.Info().
		Str("db", cfg.Database.Driver).
		Str("vector_db", cfg.VectorDB.Backend).
		Str("embedding_model", embedder.Model()).
		Msg("Pipeline ready")
	ok = true
	return a, nil
}

// restoreSnapshot loads an encrypted in-memory collection saved by a previous
// run and saves it again on close.
func (a *app) restoreSnapshot(ctx context.Context, m *chromemdb.VectorDBManager) {
	if _, err := os.Stat(m.SnapshotPath()); err == nil {
		if err := m.Import(ctx); err != nil {
			log.Warn().Err(err).Str("file", m.SnapshotPath()).Msg("Could not restore vector snapshot")
		} else {
			log.Info().Int("vectors", m.Count()).Msg("Restored vector snapshot")
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not stat vector snapshot")
	}
	a.closers = append(a.closers, func() error {
		return m.Export(context.Background())
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}
	a.closers = nil
}
