package models

// ChunkRecord is a chunk of extracted text with its ownership metadata attached.
type ChunkRecord struct {
	Text        string `json:"text"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	DocumentID  string `json:"document_id"`
	OwnerID     string `json:"owner_id"`
	Filename    string `json:"filename"`
}

// VectorRecord is what lands in the similarity index.
type VectorRecord struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// RetrievalResult is one ranked hit from the similarity index.
type RetrievalResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

type PromptResponse struct {
	Query    string
	Source   string
	Content  string
	Grounded bool
}
