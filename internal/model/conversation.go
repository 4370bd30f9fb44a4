// Package model defines data structures shared by the assistant client and
// the development backend.
package model

import (
	"time"
)

// DefaultTitle is assigned to conversations created without an explicit title.
const DefaultTitle = "New Conversation"

// Conversation represents a conversation thread between a user and the
// expense assistant.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	IsActive     bool      `json:"is_active"`
}

// CreateConversationRequest is the request to create a new conversation.
type CreateConversationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

// ConversationList is the response for listing a user's conversations,
// ordered most-recently-updated first.
type ConversationList struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
}
