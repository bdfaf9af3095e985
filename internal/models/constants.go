package models

const (
	ContextSeparator = "\n---\n"

	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
	DefaultTopK         = 5
	ContextExcerptChars = 500
)

// metadata keys carried by every indexed vector
const (
	MetaOwnerID        = "owner_id"
	MetaDocumentID     = "document_id"
	MetaChunkIndex     = "chunk_index"
	MetaTotalChunks    = "total_chunks"
	MetaFilename       = "filename"
	MetaEmbeddingModel = "embedding_model"
)

var (
	SystemPrompt = `You are a helpful assistant. Use only the given context to answer the user's question when the context is relevant to it. If the context is empty or unrelated, answer from general knowledge.`

	UserPromptTemplate = `Context:
%s

Question: %s

Answer:`
)
