package parser

import (
	"fmt"

	"rag-chatbot/internal/models"
)

// Chunker splits text into fixed-size, overlapping windows measured in
// characters (runes). A Chunker is immutable and safe for concurrent use.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker validates the window parameters.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d must be positive", models.ErrInvalidChunkConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", models.ErrInvalidChunkConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Split walks text left to right. Every chunk starts size-overlap characters
// after the previous one and is size characters long, except the last ones
// which run to the end of the text. Empty text yields no chunks.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.size - c.overlap
	chunks := make([]string, 0, ChunkCount(len(runes), c.size, c.overlap))
	for start := 0; start < len(runes); start += step {
		end := min(start+c.size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Split is a one-shot form of NewChunker(size, overlap).Split(text).
func Split(text string, size, overlap int) ([]string, error) {
	c, err := NewChunker(size, overlap)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// ChunkCount is the number of chunks Split produces for a text of n characters.
func ChunkCount(n, size, overlap int) int {
	if n <= 0 || size <= overlap {
		return 0
	}
	step := size - overlap
	return (n + step - 1) / step
}

// Reassemble is the inverse of Split: it drops the leading overlap of every
// chunk after the first.
func Reassemble(chunks []string, overlap int) string {
	var out []rune
	for i, chunk := range chunks {
		r := []rune(chunk)
		if i > 0 {
			if len(r) <= overlap {
				continue
			}
			r = r[overlap:]
		}
		out = append(out, r...)
	}
	return string(out)
}
