package rag

import (
	"context"

	"github.com/tmc/langchaingo/llms"

	"rag-chatbot/internal/config"
)

// RAG bundles the ingestion and query halves of the pipeline around one
// embedder and one index.
type RAG struct {
	*Orchestrator
	Indexer   *Indexer
	Retriever *Retriever
	Generator *Generator
	index     VectorIndex
}

func NewRAG(cfg *config.RAGConfig, embedder Embedder, index VectorIndex, llm llms.Model, turns TurnStore) *RAG {
	retriever := NewRetriever(embedder, index, cfg.TopK, cfg.MaxContextChars, cfg.QueryTimeout)
	generator := NewGenerator(llm, cfg.GenerationTimeout)
	return &RAG{
		Orchestrator: NewOrchestrator(retriever, generator, turns, cfg.TopK, cfg.ContextExcerptChars),
		Indexer:      NewIndexer(embedder, index, cfg.EmbedBatchSize, cfg.EmbedTimeout),
		Retriever:    retriever,
		Generator:    generator,
		index:        index,
	}
}

// Query answers question for ownerID without live streaming and returns the
// full answer.
func (r *RAG) Query(ctx context.Context, ownerID, question string) (string, error) {
	out, err := r.Ask(ctx, ownerID, question, nil)
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}

// DeleteDocument removes a document's vectors from the index.
func (r *RAG) DeleteDocument(ctx context.Context, ownerID, documentID string) error {
	return r.index.DeleteDocument(ctx, ownerID, documentID)
}
