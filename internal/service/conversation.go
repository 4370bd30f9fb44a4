// Package service provides the development backend's business logic.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
)

// ErrNotFound is returned when a conversation does not exist or is inactive.
var ErrNotFound = fmt.Errorf("conversation not found")

// ConversationService handles conversation operations. Storage is in-memory;
// the development backend keeps no durable state.
type ConversationService struct {
	logger *logger.Logger

	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

// NewConversationService creates a new conversation service.
func NewConversationService(log *logger.Logger) *ConversationService {
	return &ConversationService{
		logger:        log,
		conversations: make(map[string]*model.Conversation),
	}
}

// Create creates a new conversation.
func (s *ConversationService) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if title == "" {
		title = model.DefaultTitle
	}

	now := time.Now().UTC()
	conv := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		IsActive:  true,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
	)

	return conv, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	conv, exists := s.conversations[conversationID]
	s.mu.RUnlock()

	if !exists || !conv.IsActive {
		return nil, ErrNotFound
	}

	out := *conv
	return &out, nil
}

// ListByUser retrieves a user's conversations, most recently updated first.
func (s *ConversationService) ListByUser(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	s.mu.RLock()
	var convs []model.Conversation
	for _, conv := range s.conversations {
		if conv.UserID == userID && conv.IsActive {
			convs = append(convs, *conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}

	return convs, nil
}

// Delete soft deletes a conversation.
func (s *ConversationService) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists || !conv.IsActive {
		return ErrNotFound
	}

	conv.IsActive = false
	conv.UpdatedAt = time.Now().UTC()

	return nil
}

// Touch advances a conversation's update timestamp and message count after
// a message is persisted.
func (s *ConversationService) Touch(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists || !conv.IsActive {
		return ErrNotFound
	}

	conv.MessageCount++
	conv.UpdatedAt = time.Now().UTC()

	return nil
}

// Count returns the number of active conversations.
func (s *ConversationService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, conv := range s.conversations {
		if conv.IsActive {
			n++
		}
	}
	return n
}
