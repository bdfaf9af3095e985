package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag-chatbot/internal/config"
	"rag-chatbot/internal/models"
)

type stubRetriever struct {
	text  string
	err   error
	calls int
}

func (s *stubRetriever) Retrieve(context.Context, string, string, int) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubGenerator struct {
	fragments []Fragment
	calls     int
}

func (s *stubGenerator) Generate(ctx context.Context, _, _ string) <-chan Fragment {
	s.calls++
	ch := make(chan Fragment)
	go func() {
		defer close(ch)
		for _, f := range s.fragments {
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

type memoryTurns struct {
	turns []*models.ConversationTurn
	err   error
}

func (m *memoryTurns) CreateTurn(_ context.Context, turn *models.ConversationTurn) error {
	if m.err != nil {
		return m.err
	}
	turn.ID = int64(len(m.turns) + 1)
	m.turns = append(m.turns, turn)
	return nil
}

type recordingSink struct {
	grounded  *bool
	fragments []string
	failAfter int // fail on this fragment; 0 never
}

func (s *recordingSink) Context(grounded bool) error {
	s.grounded = &grounded
	return nil
}

func (s *recordingSink) Fragment(text string) error {
	s.fragments = append(s.fragments, text)
	if s.failAfter > 0 && len(s.fragments) == s.failAfter {
		return errors.New("client went away")
	}
	return nil
}

func textFragments(texts ...string) []Fragment {
	out := make([]Fragment, len(texts))
	for i, t := range texts {
		out[i] = Fragment{Text: t}
	}
	return out
}

func TestAsk_Complete(t *testing.T) {
	longContext := strings.Repeat("x", 800)
	ret := &stubRetriever{text: longContext}
	gen := &stubGenerator{fragments: textFragments("The ", "answer.")}
	turns := &memoryTurns{}
	sink := &recordingSink{}

	out, err := NewOrchestrator(ret, gen, turns, 5, 0).Ask(context.Background(), "u1", "  What?  ", sink)
	require.NoError(t, err)
	assert.Equal(t, []State{StateReceived, StateRetrieving, StateGenerating, StatePersisting, StateComplete}, out.States)
	assert.Equal(t, StateComplete, out.State())
	assert.True(t, out.Grounded)
	assert.Equal(t, "The answer.", out.Answer)
	assert.Equal(t, []string{"The ", "answer."}, sink.fragments)
	require.NotNil(t, sink.grounded)
	assert.True(t, *sink.grounded)

	require.Len(t, turns.turns, 1)
	turn := turns.turns[0]
	assert.Equal(t, "u1", turn.OwnerID)
	assert.Equal(t, "What?", turn.Question)
	assert.Equal(t, "The answer.", turn.Answer)
	assert.Len(t, turn.ContextExcerpt, 500)
	assert.False(t, turn.CreatedAt.IsZero())
	assert.Same(t, turn, out.Turn)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	ret := &stubRetriever{}
	gen := &stubGenerator{}
	out, err := NewOrchestrator(ret, gen, &memoryTurns{}, 5, 0).Ask(context.Background(), "u1", " \n\t", nil)
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, []State{StateReceived, StateFailed}, out.States)
	assert.Equal(t, StateReceived, out.FailedAt)
	assert.Zero(t, ret.calls)
	assert.Zero(t, gen.calls)
}

func TestAsk_RetrievalFailure(t *testing.T) {
	ret := &stubRetriever{err: models.ErrRetrieval}
	gen := &stubGenerator{}
	turns := &memoryTurns{}
	out, err := NewOrchestrator(ret, gen, turns, 5, 0).Ask(context.Background(), "u1", "q", nil)
	assert.ErrorIs(t, err, models.ErrRetrieval)
	assert.Equal(t, StateRetrieving, out.FailedAt)
	assert.Zero(t, gen.calls, "generation never starts after a retrieval failure")
	assert.Empty(t, turns.turns)
}

func TestAsk_GenerationFailureDiscardsPartial(t *testing.T) {
	gen := &stubGenerator{fragments: []Fragment{
		{Text: "half an "},
		{Err: errors.Join(models.ErrGeneration, errors.New("stream reset"))},
	}}
	turns := &memoryTurns{}
	sink := &recordingSink{}
	out, err := NewOrchestrator(&stubRetriever{text: "ctx"}, gen, turns, 5, 0).Ask(context.Background(), "u1", "q", sink)
	assert.ErrorIs(t, err, models.ErrGeneration)
	assert.Equal(t, StateGenerating, out.FailedAt)
	assert.Equal(t, []string{"half an "}, sink.fragments)
	assert.Empty(t, turns.turns)
	assert.Nil(t, out.Turn)
}

func TestAsk_Ungrounded(t *testing.T) {
	sink := &recordingSink{}
	turns := &memoryTurns{}
	out, err := NewOrchestrator(&stubRetriever{}, &stubGenerator{fragments: textFragments("general answer")}, turns, 5, 0).
		Ask(context.Background(), "u1", "q", sink)
	require.NoError(t, err)
	assert.False(t, out.Grounded)
	require.NotNil(t, sink.grounded)
	assert.False(t, *sink.grounded)
	require.Len(t, turns.turns, 1)
	assert.Empty(t, turns.turns[0].ContextExcerpt)
}

func TestAsk_SinkDisconnect(t *testing.T) {
	gen := &stubGenerator{fragments: textFragments("a", "b", "c")}
	turns := &memoryTurns{}
	out, err := NewOrchestrator(&stubRetriever{text: "ctx"}, gen, turns, 5, 0).
		Ask(context.Background(), "u1", "q", &recordingSink{failAfter: 2})
	assert.ErrorIs(t, err, models.ErrCancelled)
	assert.Equal(t, StateGenerating, out.FailedAt)
	assert.Empty(t, turns.turns)
}

func TestAsk_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &stubGenerator{fragments: textFragments("a")}
	turns := &memoryTurns{}
	_, err := NewOrchestrator(&stubRetriever{text: "ctx"}, gen, turns, 5, 0).Ask(ctx, "u1", "q", nil)
	assert.ErrorIs(t, err, models.ErrCancelled)
	assert.Empty(t, turns.turns)
}

func TestAsk_PersistFailure(t *testing.T) {
	turns := &memoryTurns{err: errors.New("db down")}
	out, err := NewOrchestrator(&stubRetriever{text: "ctx"}, &stubGenerator{fragments: textFragments("ok")}, turns, 5, 0).
		Ask(context.Background(), "u1", "q", nil)
	assert.Error(t, err)
	assert.Equal(t, StatePersisting, out.FailedAt)
}

func TestRAG_EndToEnd(t *testing.T) {
	ctx := context.Background()
	emb := newLetterEmbedder()
	idx := newMemoryIndex(t)
	turns := &memoryTurns{}
	m := &streamingModel{fragments: []string{"Paris."}, failAfter: -1}

	cfg := &config.RAGConfig{TopK: 5, EmbedBatchSize: 4, MaxContextChars: 5000}
	r := NewRAG(cfg, emb, idx, m, turns)

	_, err := r.Indexer.Index(ctx, chunkRecords("u1", "d1", "The capital of France is Paris.", "Bananas are yellow."))
	require.NoError(t, err)

	answer, err := r.Query(ctx, "u1", "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", answer)
	require.Len(t, turns.turns, 1)
	assert.Contains(t, turns.turns[0].ContextExcerpt, "capital of France")

	require.NoError(t, r.DeleteDocument(ctx, "u1", "d1"))
	assert.Equal(t, 0, idx.Count())

	out, err := r.Ask(ctx, "u1", "What is the capital of France?", nil)
	require.NoError(t, err)
	assert.False(t, out.Grounded)
}
