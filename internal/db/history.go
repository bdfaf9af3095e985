package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"rag-chatbot/internal/models"
)

const defaultHistoryLimit = 50

type ChatHistory struct {
	bun.BaseModel `bun:"table:chat_history,alias:ch"`
	ID            int64     `bun:"id,pk,autoincrement"`
	OwnerID       string    `bun:"owner_id,notnull"`
	Question      string    `bun:"question,notnull"`
	Answer        string    `bun:"answer,notnull"`
	ContextUsed   string    `bun:"context_used"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

func (c *ChatHistory) toModel() models.ConversationTurn {
	return models.ConversationTurn{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Question:       c.Question,
		Answer:         c.Answer,
		ContextExcerpt: c.ContextUsed,
		CreatedAt:      c.CreatedAt,
	}
}

// CreateTurn persists a completed turn and fills in its ID and timestamp.
func (s *Store) CreateTurn(ctx context.Context, turn *models.ConversationTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	row := &ChatHistory{
		OwnerID:     turn.OwnerID,
		Question:    turn.Question,
		Answer:      turn.Answer,
		ContextUsed: turn.ContextExcerpt,
		CreatedAt:   turn.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert chat history: %w", err)
	}
	turn.ID = row.ID
	return nil
}

// ListTurns returns up to limit turns, newest first.
func (s *Store) ListTurns(ctx context.Context, ownerID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []ChatHistory
	err := s.db.NewSelect().
		Model(&rows).
		Where("owner_id = ?", ownerID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	turns := make([]models.ConversationTurn, len(rows))
	for i := range rows {
		turns[i] = rows[i].toModel()
	}
	return turns, nil
}

func (s *Store) GetTurn(ctx context.Context, ownerID string, id int64) (*models.ConversationTurn, error) {
	row := new(ChatHistory)
	err := s.db.NewSelect().
		Model(row).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chat %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	turn := row.toModel()
	return &turn, nil
}

func (s *Store) DeleteTurn(ctx context.Context, ownerID string, id int64) error {
	res, err := s.db.NewDelete().
		Model((*ChatHistory)(nil)).
		Where("id = ?", id).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete chat %d: %w", id, err)
	}
	return expectRow(res, fmt.Sprintf("chat %d", id))
}

// ClearTurns deletes the owner's whole history and reports how many turns went.
func (s *Store) ClearTurns(ctx context.Context, ownerID string) (int, error) {
	res, err := s.db.NewDelete().
		Model((*ChatHistory)(nil)).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear chat history: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Store) TurnStats(ctx context.Context, ownerID string) (*models.TurnStats, error) {
	total, err := s.db.NewSelect().
		Model((*ChatHistory)(nil)).
		Where("owner_id = ?", ownerID).
		Count(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.TurnStats{TotalChats: total}
	if total == 0 {
		return stats, nil
	}

	first, err := s.edgeTurn(ctx, ownerID, "created_at ASC, id ASC")
	if err != nil {
		return nil, err
	}
	last, err := s.edgeTurn(ctx, ownerID, "created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	stats.FirstChatDate = &first.CreatedAt
	stats.LastChatDate = &last.CreatedAt
	return stats, nil
}

func (s *Store) edgeTurn(ctx context.Context, ownerID, order string) (*ChatHistory, error) {
	row := new(ChatHistory)
	err := s.db.NewSelect().
		Model(row).
		Where("owner_id = ?", ownerID).
		OrderExpr(order).
		Limit(1).
		Scan(ctx)
	return row, err
}
