package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"rag-chatbot/internal/models"
)

type State string

const (
	StateReceived   State = "RECEIVED"
	StateRetrieving State = "RETRIEVING"
	StateGenerating State = "GENERATING"
	StatePersisting State = "PERSISTING"
	StateComplete   State = "COMPLETE"
	StateFailed     State = "FAILED"
)

type ContextRetriever interface {
	Retrieve(ctx context.Context, question, ownerID string, topK int) (string, error)
}

type AnswerGenerator interface {
	Generate(ctx context.Context, question, contextText string) <-chan Fragment
}

// TurnStore persists completed turns.
type TurnStore interface {
	CreateTurn(ctx context.Context, turn *models.ConversationTurn) error
}

// Sink receives a query's progress as it happens. An error from either
// method aborts the query as cancelled.
type Sink interface {
	Context(grounded bool) error
	Fragment(text string) error
}

// Outcome describes how a query ended.
type Outcome struct {
	States   []State
	FailedAt State
	Grounded bool
	Context  string
	Answer   string
	Turn     *models.ConversationTurn
	Err      error
}

func (o *Outcome) State() State {
	return o.States[len(o.States)-1]
}

type Orchestrator struct {
	retriever    ContextRetriever
	generator    AnswerGenerator
	turns        TurnStore
	topK         int
	excerptChars int
	now          func() time.Time
}

// NewOrchestrator wires a query pipeline. turns may be nil, in which case
// completed answers are not persisted.
func NewOrchestrator(retriever ContextRetriever, generator AnswerGenerator, turns TurnStore, topK, excerptChars int) *Orchestrator {
	if excerptChars <= 0 {
		excerptChars = models.ContextExcerptChars
	}
	return &Orchestrator{
		retriever:    retriever,
		generator:    generator,
		turns:        turns,
		topK:         topK,
		excerptChars: excerptChars,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Ask runs one query: retrieve, generate while forwarding fragments to sink,
// then persist the finished turn. sink may be nil. Nothing is persisted
// unless generation completes.
func (o *Orchestrator) Ask(ctx context.Context, ownerID, question string, sink Sink) (*Outcome, error) {
	out := &Outcome{States: []State{StateReceived}}
	fail := func(err error) (*Outcome, error) {
		if errors.Is(ctx.Err(), context.Canceled) && !errors.Is(err, models.ErrCancelled) {
			err = fmt.Errorf("%w: %w", models.ErrCancelled, err)
		}
		out.FailedAt = out.State()
		out.States = append(out.States, StateFailed)
		out.Err = err
		log.Error().Err(err).
			Str("owner_id", ownerID).
			Str("state", string(out.FailedAt)).
			Msg("Chat query failed")
		return out, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return fail(fmt.Errorf("%w: question is empty", models.ErrValidation))
	}
	if ownerID == "" {
		return fail(fmt.Errorf("%w: owner id is required", models.ErrValidation))
	}

	out.States = append(out.States, StateRetrieving)
	contextText, err := o.retriever.Retrieve(ctx, question, ownerID, o.topK)
	if err != nil {
		return fail(err)
	}
	out.Context = contextText
	out.Grounded = contextText != ""
	if !out.Grounded {
		log.Warn().Str("owner_id", ownerID).Msg("No matching chunks; answering without document context")
	}
	if sink != nil {
		if err := sink.Context(out.Grounded); err != nil {
			return fail(fmt.Errorf("%w: %w", models.ErrCancelled, err))
		}
	}

	out.States = append(out.States, StateGenerating)
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var answer strings.Builder
	for f := range o.generator.Generate(genCtx, question, contextText) {
		if f.Err != nil {
			return fail(f.Err)
		}
		answer.WriteString(f.Text)
		if sink != nil {
			if err := sink.Fragment(f.Text); err != nil {
				return fail(fmt.Errorf("%w: %w", models.ErrCancelled, err))
			}
		}
	}
	// the stream also ends quietly when ctx is cancelled
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("%w: %w", models.ErrGeneration, err))
	}
	out.Answer = answer.String()

	out.States = append(out.States, StatePersisting)
	turn := &models.ConversationTurn{
		OwnerID:        ownerID,
		Question:       question,
		Answer:         out.Answer,
		ContextExcerpt: truncateRunes(contextText, o.excerptChars),
		CreatedAt:      o.now(),
	}
	if o.turns != nil {
		if err := o.turns.CreateTurn(ctx, turn); err != nil {
			return fail(fmt.Errorf("persist turn: %w", err))
		}
	}
	out.Turn = turn
	out.States = append(out.States, StateComplete)

	log.Debug().
		Str("owner_id", ownerID).
		Bool("grounded", out.Grounded).
		Int("answer_chars", len(out.Answer)).
		Msg("Chat query complete")
	return out, nil
}
