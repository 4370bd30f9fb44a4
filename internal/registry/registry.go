// Package registry owns the client-side list of a user's conversations.
package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
	"github.com/trackit-ai/assistant-go/pkg/metrics"
)

// Registry lists, creates and deletes a user's conversations. It holds no
// authoritative server state, only a cache the caller refreshes on demand.
// The cache has a single writer: all mutations go through Registry methods.
type Registry struct {
	client *api.Client
	logger *logger.Logger

	mu            sync.RWMutex
	conversations []model.Conversation
}

// New creates a registry backed by the given API client.
func New(client *api.Client, log *logger.Logger) *Registry {
	return &Registry{
		client: client,
		logger: log,
	}
}

// Load fetches the user's conversations, most recently updated first, and
// replaces the cache. A failed load degrades to an empty cache; the error is
// returned so callers can fall back to creating a conversation.
func (r *Registry) Load(ctx context.Context, userID string, limit int) ([]model.Conversation, error) {
	list, err := r.client.ListConversations(ctx, userID, limit)
	if err != nil {
		r.logger.Warn("failed to load conversations", zap.String("user_id", userID), zap.Error(err))
		r.mu.Lock()
		r.conversations = nil
		r.mu.Unlock()
		return nil, err
	}

	r.mu.Lock()
	r.conversations = append([]model.Conversation(nil), list.Conversations...)
	r.mu.Unlock()

	return r.Conversations(), nil
}

// Create creates a conversation for the user and inserts it at the head of
// the cache. An empty userID fails with a ValidationError before any network
// call. An empty title defaults on the server side.
func (r *Registry) Create(ctx context.Context, userID, title string) (*model.Conversation, error) {
	conv, err := r.client.CreateConversation(ctx, userID, title)
	if err != nil {
		return nil, err
	}

	metrics.ConversationsTotal.Inc()

	r.mu.Lock()
	r.conversations = append([]model.Conversation{*conv}, r.conversations...)
	r.mu.Unlock()

	r.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
	)

	return conv, nil
}

// Get fetches one conversation's details from the backend.
func (r *Registry) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return r.client.GetConversation(ctx, conversationID)
}

// Remove deletes the conversation on the backend and prunes it from the
// cache. Selecting a replacement for a deleted active conversation is the
// caller's responsibility.
func (r *Registry) Remove(ctx context.Context, conversationID string) error {
	if err := r.client.DeleteConversation(ctx, conversationID); err != nil {
		return err
	}

	r.Prune(conversationID)

	r.logger.Info("conversation deleted", zap.String("conversation_id", conversationID))
	return nil
}

// Conversations returns a copy of the cached list.
func (r *Registry) Conversations() []model.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.Conversation(nil), r.conversations...)
}

// Len returns the number of cached conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

// Prune drops a conversation from the cache without a network call.
func (r *Registry) Prune(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.conversations[:0]
	for _, conv := range r.conversations {
		if conv.ID != conversationID {
			kept = append(kept, conv)
		}
	}
	r.conversations = kept
}

// RenameCached updates a cached conversation's title without a network call.
// Used when the session controller derives a title from the first message.
func (r *Registry) RenameCached(conversationID, title string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.conversations {
		if r.conversations[i].ID == conversationID {
			r.conversations[i].Title = title
			return
		}
	}
}
