package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Origin identifies where a timeline entry came from. Persisted entries were
// read back from the backend; the other variants are client-local and never
// written over the wire.
type Origin int

const (
	// OriginPersisted is a message returned by the backend.
	OriginPersisted Origin = iota
	// OriginOptimisticUser is a user message appended locally before the
	// chat request settles.
	OriginOptimisticUser
	// OriginPendingAssistant is the empty placeholder shown while the
	// assistant reply is in flight. Exactly one may exist at a time.
	OriginPendingAssistant
	// OriginErrorAssistant is the error bubble appended when a chat
	// request fails.
	OriginErrorAssistant
)

// Message represents one entry in a conversation timeline.
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	Role           Role                   `json:"role"`
	Content        string                 `json:"content"`
	Metadata       map[string]interface{} `json:"metadata"`
	CreatedAt      time.Time              `json:"created_at"`

	// Origin is client-side bookkeeping only.
	Origin Origin `json:"-"`
}

// Pending reports whether the message is the in-flight assistant placeholder.
func (m Message) Pending() bool {
	return m.Origin == OriginPendingAssistant
}

// MessageList is the response for listing a conversation's messages, in
// insertion order.
type MessageList struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}
