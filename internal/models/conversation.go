package models

import "time"

// ConversationTurn is the persisted record of one completed chat query.
type ConversationTurn struct {
	ID             int64     `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	ContextExcerpt string    `json:"context_used,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type TurnStats struct {
	TotalChats    int        `json:"total_chats"`
	FirstChatDate *time.Time `json:"first_chat_date"`
	LastChatDate  *time.Time `json:"last_chat_date"`
}
