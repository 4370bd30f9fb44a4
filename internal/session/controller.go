// Package session manages one conversation's message timeline and the
// request/response cycle for new chat turns.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
	"github.com/trackit-ai/assistant-go/pkg/metrics"
)

// State is the controller's position in the session lifecycle.
type State int

const (
	// StateLoading means the persisted history fetch has not finished.
	StateLoading State = iota
	// StateIdle means the controller accepts new submissions.
	StateIdle
	// StateSending means one chat request is in flight. Submissions are
	// rejected until it settles, so at most one request is outstanding
	// per session.
	StateSending
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	default:
		return "unknown"
	}
}

// ErrBusy is returned when Submit is called while a request is in flight or
// before the history load has settled.
var ErrBusy = errors.New("session: a request is already in flight")

// errorReply is the user-visible bubble appended when a chat turn fails.
const errorReply = "I'm sorry, I encountered an error processing your request. Please try again."

// titleLimit bounds derived conversation titles.
const titleLimit = 30

// Controller owns the timeline of one conversation session. The timeline is
// append-only except for the single reconciliation step that removes the
// pending placeholder. All mutations happen under the controller's mutex;
// no other component writes the timeline.
type Controller struct {
	client         *api.Client
	conversationID string
	userID         string
	logger         *logger.Logger
	chatTimeout    time.Duration

	mu        sync.Mutex
	state     State
	messages  []model.Message
	onTitle   func(title string)
	titleSent bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithChatTimeout bounds how long one chat turn may stay in flight. When the
// deadline passes the turn takes the failure path and the session returns to
// idle.
func WithChatTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.chatTimeout = d
	}
}

// NewController binds a conversation id to a fresh session. The controller
// starts in the loading state; call Load to fetch history before submitting.
func NewController(client *api.Client, conversationID, userID string, log *logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		client:         client,
		conversationID: conversationID,
		userID:         userID,
		logger:         log.WithSession(userID, conversationID),
		chatTimeout:    120 * time.Second,
		state:          StateLoading,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnTitle registers the one-shot callback invoked with the derived title
// after the first successful turn in a previously empty timeline. The owner
// decides whether and how to persist it.
func (c *Controller) OnTitle(fn func(title string)) {
	c.mu.Lock()
	c.onTitle = fn
	c.mu.Unlock()
}

// ConversationID returns the bound conversation id.
func (c *Controller) ConversationID() string {
	return c.conversationID
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a snapshot of the timeline.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.messages...)
}

// Load fetches the conversation's persisted messages. A failed load is
// logged and degrades to an empty timeline; either way the session becomes
// idle and accepts submissions.
func (c *Controller) Load(ctx context.Context) {
	list, err := c.client.ListMessages(ctx, c.conversationID, 0)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.logger.Warn("failed to load messages", zap.Error(err))
		c.messages = nil
	} else {
		c.messages = append([]model.Message(nil), list.Messages...)
	}
	c.state = StateIdle
}

// Submit sends one chat turn. Two entries are appended synchronously before
// any network I/O: the trimmed user message and an empty pending assistant
// placeholder. On settlement the placeholder is removed and either the
// assistant's answer or an error bubble takes its place; the session then
// returns to idle.
//
// Blank input, a missing user or conversation binding, or a turn already in
// flight reject the submission without touching the timeline. A failed chat
// call is not an error from Submit's point of view: it is reconciled into
// the timeline as the error bubble.
func (c *Controller) Submit(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &api.ValidationError{Field: "message", Reason: "cannot be blank"}
	}
	if c.userID == "" {
		return &api.ValidationError{Field: "user_id", Reason: "cannot be empty"}
	}
	if c.conversationID == "" {
		return &api.ValidationError{Field: "conversation_id", Reason: "no conversation bound"}
	}

	now := time.Now()

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	wasEmpty := len(c.messages) == 0
	c.messages = append(c.messages,
		model.Message{
			ID:             "temp-" + uuid.NewString(),
			ConversationID: c.conversationID,
			Role:           model.RoleUser,
			Content:        trimmed,
			Metadata:       map[string]interface{}{},
			CreatedAt:      now,
			Origin:         model.OriginOptimisticUser,
		},
		model.Message{
			ID:             "loading-" + uuid.NewString(),
			ConversationID: c.conversationID,
			Role:           model.RoleAssistant,
			Content:        "",
			Metadata:       map[string]interface{}{},
			CreatedAt:      now,
			Origin:         model.OriginPendingAssistant,
		},
	)
	c.state = StateSending
	c.mu.Unlock()

	if c.chatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.chatTimeout)
		defer cancel()
	}

	resp, err := c.client.SendChat(ctx, c.conversationID, c.userID, trimmed)

	c.mu.Lock()
	c.removePendingLocked()
	var notifyTitle func(string)
	if err != nil {
		c.logger.Warn("chat turn failed", zap.Error(err))
		c.messages = append(c.messages, model.Message{
			ID:             "error-" + uuid.NewString(),
			ConversationID: c.conversationID,
			Role:           model.RoleAssistant,
			Content:        errorReply,
			Metadata:       map[string]interface{}{"error": true},
			CreatedAt:      time.Now(),
			Origin:         model.OriginErrorAssistant,
		})
		metrics.ChatTurnsTotal.WithLabelValues("error").Inc()
	} else {
		c.messages = append(c.messages, model.Message{
			ID:             resp.MessageID,
			ConversationID: c.conversationID,
			Role:           model.RoleAssistant,
			Content:        resp.Response,
			Metadata:       assistantMetadata(resp),
			CreatedAt:      time.Now(),
			Origin:         model.OriginPersisted,
		})
		metrics.ChatTurnsTotal.WithLabelValues("success").Inc()

		if wasEmpty && !c.titleSent && c.onTitle != nil {
			c.titleSent = true
			notifyTitle = c.onTitle
		}
	}
	c.state = StateIdle
	c.mu.Unlock()

	// The callback runs after the terminal state is reached, so the owner
	// observes an idle session.
	if notifyTitle != nil {
		notifyTitle(DeriveTitle(trimmed))
	}

	return nil
}

// removePendingLocked drops the in-flight placeholder. Caller holds c.mu.
func (c *Controller) removePendingLocked() {
	kept := c.messages[:0]
	for _, msg := range c.messages {
		if !msg.Pending() {
			kept = append(kept, msg)
		}
	}
	c.messages = kept
}

// assistantMetadata merges the response's routing info into display metadata.
func assistantMetadata(resp *model.ChatResponse) map[string]interface{} {
	meta := map[string]interface{}{
		"agent": resp.AgentUsed,
	}
	if resp.Classification != nil {
		meta["classification"] = *resp.Classification
	}
	for k, v := range resp.Metadata {
		meta[k] = v
	}
	return meta
}

// DeriveTitle derives a conversation title from the first user message:
// the text unchanged up to 30 characters, truncated with an ellipsis beyond.
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "..."
	}
	return text
}
