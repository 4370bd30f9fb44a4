// Package workspace wires the conversation registry to the active session.
// It owns the select-or-create policy: on boot bind the most recently
// updated conversation or create one, and re-run the same policy whenever
// the active conversation is deleted.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/internal/registry"
	"github.com/trackit-ai/assistant-go/internal/session"
	"github.com/trackit-ai/assistant-go/pkg/logger"
)

// Workspace is the page-level orchestrator: it holds the registry and the
// controller for the active conversation. The two are coupled only through
// the hand-off implemented here, never through shared mutable state.
type Workspace struct {
	client      *api.Client
	registry    *registry.Registry
	logger      *logger.Logger
	userID      string
	listLimit   int
	chatTimeout time.Duration

	mu     sync.Mutex
	active model.Conversation
	ctl    *session.Controller
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithListLimit bounds how many conversations are fetched on boot.
func WithListLimit(limit int) Option {
	return func(w *Workspace) {
		w.listLimit = limit
	}
}

// WithChatTimeout is forwarded to every session controller the workspace
// creates.
func WithChatTimeout(d time.Duration) Option {
	return func(w *Workspace) {
		w.chatTimeout = d
	}
}

// New creates a workspace for one user.
func New(client *api.Client, reg *registry.Registry, userID string, log *logger.Logger, opts ...Option) *Workspace {
	w := &Workspace{
		client:      client,
		registry:    reg,
		logger:      log,
		userID:      userID,
		listLimit:   50,
		chatTimeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Init loads the user's conversations and binds the most recently updated
// one, creating a fresh conversation when the user has none. A failed list
// load falls back to creating a conversation rather than blocking.
func (w *Workspace) Init(ctx context.Context) error {
	if w.userID == "" {
		return &api.ValidationError{Field: "user_id", Reason: "cannot be empty"}
	}

	convs, err := w.registry.Load(ctx, w.userID, w.listLimit)
	if err != nil {
		w.logger.Warn("conversation list unavailable, creating a new conversation", zap.Error(err))
		_, err := w.NewConversation(ctx)
		return err
	}

	if len(convs) == 0 {
		_, err := w.NewConversation(ctx)
		return err
	}

	w.bind(ctx, convs[0])
	return nil
}

// NewConversation creates a conversation via the registry and binds it
// immediately. Conversation ids are always backend-assigned; the workspace
// never synthesizes one.
func (w *Workspace) NewConversation(ctx context.Context) (*model.Conversation, error) {
	conv, err := w.registry.Create(ctx, w.userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	w.bind(ctx, *conv)
	return conv, nil
}

// Select binds an existing conversation as the active session.
func (w *Workspace) Select(ctx context.Context, conversationID string) error {
	for _, conv := range w.registry.Conversations() {
		if conv.ID == conversationID {
			w.bind(ctx, conv)
			return nil
		}
	}

	conv, err := w.registry.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	w.bind(ctx, *conv)
	return nil
}

// Delete removes a conversation. Deleting the active one re-runs the
// select-or-create policy; deleting any other only prunes the list.
func (w *Workspace) Delete(ctx context.Context, conversationID string) error {
	if err := w.registry.Remove(ctx, conversationID); err != nil {
		return err
	}

	w.mu.Lock()
	wasActive := w.active.ID == conversationID
	w.mu.Unlock()

	if !wasActive {
		return nil
	}

	remaining := w.registry.Conversations()
	if len(remaining) > 0 {
		w.bind(ctx, remaining[0])
		return nil
	}

	_, err := w.NewConversation(ctx)
	return err
}

// Active returns the active conversation.
func (w *Workspace) Active() model.Conversation {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// Controller returns the session controller for the active conversation.
func (w *Workspace) Controller() *session.Controller {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctl
}

// Conversations returns the registry's cached list.
func (w *Workspace) Conversations() []model.Conversation {
	return w.registry.Conversations()
}

// bind hands a conversation id to a fresh session controller and loads its
// history. The derived-title event updates the registry's cached title so
// the list stays consistent with the session; it is not persisted to the
// backend and is not retried.
func (w *Workspace) bind(ctx context.Context, conv model.Conversation) {
	ctl := session.NewController(w.client, conv.ID, w.userID, w.logger,
		session.WithChatTimeout(w.chatTimeout))
	ctl.OnTitle(func(title string) {
		w.registry.RenameCached(conv.ID, title)
		w.logger.Info("conversation title derived",
			zap.String("conversation_id", conv.ID),
			zap.String("title", title),
		)
	})
	ctl.Load(ctx)

	w.mu.Lock()
	w.active = conv
	w.ctl = ctl
	w.mu.Unlock()

	w.logger.Info("conversation bound",
		zap.String("conversation_id", conv.ID),
		zap.String("title", conv.Title),
	)
}
