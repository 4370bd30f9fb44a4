// Package api provides the HTTP client for the TrackIt conversation API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
	"github.com/trackit-ai/assistant-go/pkg/metrics"
)

const tracerName = "trackit-api"

// Client talks to the conversation endpoints of the TrackIt backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token attached to every request. The token is
// opaque to this client; it comes from the external identity service.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a new API client.
func New(baseURL string, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListConversations retrieves a user's conversations, most recently updated
// first, bounded by limit.
func (c *Client) ListConversations(ctx context.Context, userID string, limit int) (*model.ConversationList, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "cannot be empty"}
	}

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out model.ConversationList
	if err := c.do(ctx, "list_conversations", http.MethodGet, "/conversations/user/"+url.PathEscape(userID), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateConversation creates a new conversation for the user. An empty title
// defaults to model.DefaultTitle.
func (c *Client) CreateConversation(ctx context.Context, userID, title string) (*model.Conversation, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "cannot be empty"}
	}
	if title == "" {
		title = model.DefaultTitle
	}

	var out model.Conversation
	req := model.CreateConversationRequest{UserID: userID, Title: title}
	if err := c.do(ctx, "create_conversation", http.MethodPost, "/conversations/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation retrieves one conversation's details.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if conversationID == "" {
		return nil, &ValidationError{Field: "conversation_id", Reason: "cannot be empty"}
	}

	var out model.Conversation
	if err := c.do(ctx, "get_conversation", http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages retrieves a conversation's messages in insertion order.
func (c *Client) ListMessages(ctx context.Context, conversationID string, limit int) (*model.MessageList, error) {
	if conversationID == "" {
		return nil, &ValidationError{Field: "conversation_id", Reason: "cannot be empty"}
	}

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out model.MessageList
	if err := c.do(ctx, "list_messages", http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", q, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Messages {
		out.Messages[i].Origin = model.OriginPersisted
	}
	return &out, nil
}

// SendChat submits one chat turn and returns the assistant's answer.
func (c *Client) SendChat(ctx context.Context, conversationID, userID, message string) (*model.ChatResponse, error) {
	if conversationID == "" {
		return nil, &ValidationError{Field: "conversation_id", Reason: "cannot be empty"}
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "cannot be empty"}
	}

	q := url.Values{}
	q.Set("user_id", userID)

	var out model.ChatResponse
	req := model.ChatRequest{Message: message}
	if err := c.do(ctx, "send_chat", http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/chat", q, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuickQuery runs a one-shot query without a persistent conversation.
func (c *Client) QuickQuery(ctx context.Context, userID, message string) (*model.ChatResponse, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "cannot be empty"}
	}

	var out model.ChatResponse
	req := model.QuickQueryRequest{UserID: userID, Message: message}
	if err := c.do(ctx, "quick_query", http.MethodPost, "/conversations/quick-query", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation deletes a conversation. The backend cascades deletion to
// the conversation's messages.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return &ValidationError{Field: "conversation_id", Reason: "cannot be empty"}
	}
	return c.do(ctx, "delete_conversation", http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil, nil)
}

// do executes one request and decodes the response into out (when non-nil).
// Network failures map to TransportError, non-2xx responses to ServerError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}) error {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordAPIRequest(op, "transport_error", time.Since(start).Seconds())
		span.SetStatus(codes.Error, err.Error())
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		diagnostic, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.RecordAPIRequest(op, strconv.Itoa(resp.StatusCode), duration)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return &ServerError{Op: op, Status: resp.StatusCode, Body: string(diagnostic)}
	}

	metrics.RecordAPIRequest(op, strconv.Itoa(resp.StatusCode), duration)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
