package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/models"
)

func sampleText(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz .,\n"
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[(i*7+i/3)%len(alphabet)])
	}
	return b.String()
}

func TestNewChunker_InvalidConfig(t *testing.T) {
	tests := []struct {
		size, overlap int
	}{
		{100, 100},
		{100, 150},
		{0, 0},
		{-5, 0},
		{10, -1},
	}
	for _, tt := range tests {
		_, err := NewChunker(tt.size, tt.overlap)
		assert.ErrorIs(t, err, models.ErrInvalidChunkConfig, "size=%d overlap=%d", tt.size, tt.overlap)
	}
}

func TestSplit_Empty(t *testing.T) {
	chunks, err := Split("", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_DefaultConfig2500(t *testing.T) {
	text := sampleText(2500)
	chunks, err := Split(text, models.DefaultChunkSize, models.DefaultChunkOverlap)
	require.NoError(t, err)

	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 1000)
	assert.Len(t, chunks[1], 1000)
	assert.Len(t, chunks[2], 900)
	assert.Len(t, chunks[3], 100)

	// consecutive chunks share exactly the overlap
	assert.Equal(t, chunks[0][800:], chunks[1][:200])
	assert.Equal(t, chunks[1][800:], chunks[2][:200])
	assert.Equal(t, text[1600:], chunks[2])
}

func TestSplit_ShortText(t *testing.T) {
	chunks, err := Split("short", 1000, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"short"}, chunks)
}

func TestSplit_Reassemble(t *testing.T) {
	configs := []struct{ size, overlap int }{
		{1000, 200}, {10, 0}, {10, 9}, {7, 3}, {1, 0}, {50, 25},
	}
	for _, cfg := range configs {
		for _, n := range []int{0, 1, 6, 7, 10, 99, 100, 101, 2500} {
			text := sampleText(n)
			chunks, err := Split(text, cfg.size, cfg.overlap)
			require.NoError(t, err)
			assert.Equal(t, text, Reassemble(chunks, cfg.overlap), "size=%d overlap=%d n=%d", cfg.size, cfg.overlap, n)
			assert.Equal(t, ChunkCount(n, cfg.size, cfg.overlap), len(chunks), "size=%d overlap=%d n=%d", cfg.size, cfg.overlap, n)
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := sampleText(3333)
	a, err := Split(text, 300, 40)
	require.NoError(t, err)
	b, err := Split(text, 300, 40)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_MultibyteCharacters(t *testing.T) {
	text := strings.Repeat("héllo wörld ✓ ", 20)
	chunks, err := Split(text, 25, 5)
	require.NoError(t, err)

	for i, c := range chunks[:len(chunks)-1] {
		assert.Equal(t, 25, len([]rune(c)), "chunk %d", i)
	}
	assert.Equal(t, text, Reassemble(chunks, 5))
}

func TestChunker_Accessors(t *testing.T) {
	c, err := NewChunker(500, 50)
	require.NoError(t, err)
	assert.Equal(t, 500, c.Size())
	assert.Equal(t, 50, c.Overlap())
}
