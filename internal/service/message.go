package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trackit-ai/assistant-go/internal/llm"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
	"github.com/trackit-ai/assistant-go/pkg/metrics"
)

const historyWindow = 20

// errorReply is persisted as the assistant turn when answering fails, so
// reloaded history shows the failure.
const errorReply = "I'm sorry, I encountered an error processing your request. Please try again."

// MessageService handles message persistence and the chat turn pipeline:
// persist the user message, classify the query, answer it, persist the
// assistant message.
type MessageService struct {
	conversationService *ConversationService
	llmClient           llm.Client
	logger              *logger.Logger

	mu       sync.RWMutex
	messages map[string][]model.Message
}

// NewMessageService creates a new message service.
func NewMessageService(convSvc *ConversationService, llmClient llm.Client, log *logger.Logger) *MessageService {
	return &MessageService{
		conversationService: convSvc,
		llmClient:           llmClient,
		logger:              log,
		messages:            make(map[string][]model.Message),
	}
}

// List retrieves a conversation's messages in insertion order.
func (s *MessageService) List(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if _, err := s.conversationService.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	msgs := append([]model.Message(nil), s.messages[conversationID]...)
	s.mu.RUnlock()

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}

	return msgs, nil
}

// Chat runs one turn: the user message and the assistant's answer are both
// persisted, and the routing classification is returned with the response.
func (s *MessageService) Chat(ctx context.Context, conversationID, userID, text string) (*model.ChatResponse, error) {
	if _, err := s.conversationService.Get(ctx, conversationID); err != nil {
		return nil, err
	}

	s.append(conversationID, model.RoleUser, text, map[string]interface{}{})
	if err := s.conversationService.Touch(ctx, conversationID); err != nil {
		return nil, err
	}

	classification := Classify(text)
	answer, err := s.answer(ctx, conversationID, text, classification)
	if err != nil {
		s.append(conversationID, model.RoleAssistant, errorReply, map[string]interface{}{
			"error": true,
		})
		if terr := s.conversationService.Touch(ctx, conversationID); terr != nil {
			s.logger.Warn("failed to touch conversation", zap.Error(terr))
		}
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	assistantMsg := s.append(conversationID, model.RoleAssistant, answer, map[string]interface{}{
		"agent":          classification.Agent,
		"classification": classification,
	})
	if err := s.conversationService.Touch(ctx, conversationID); err != nil {
		return nil, err
	}

	return &model.ChatResponse{
		MessageID:      assistantMsg.ID,
		Response:       answer,
		ConversationID: conversationID,
		AgentUsed:      classification.Agent,
		Classification: &classification,
		Metadata: map[string]interface{}{
			"provider": s.llmClient.Name(),
		},
	}, nil
}

// QuickQuery answers one query without touching any conversation.
func (s *MessageService) QuickQuery(ctx context.Context, userID, text string) (*model.ChatResponse, error) {
	classification := Classify(text)
	answer, err := s.answer(ctx, "", text, classification)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &model.ChatResponse{
		MessageID:      uuid.NewString(),
		Response:       answer,
		AgentUsed:      classification.Agent,
		Classification: &classification,
		Metadata: map[string]interface{}{
			"provider": s.llmClient.Name(),
		},
	}, nil
}

// Drop discards a conversation's messages after the conversation is deleted.
func (s *MessageService) Drop(conversationID string) {
	s.mu.Lock()
	delete(s.messages, conversationID)
	s.mu.Unlock()
}

// answer builds the prompt from recent history and asks the LLM provider.
func (s *MessageService) answer(ctx context.Context, conversationID, text string, cls model.Classification) (string, error) {
	chatMessages := []llm.ChatMessage{
		{
			Role: string(model.RoleSystem),
			Content: "You are an expense assistant answering questions about the user's receipts " +
				"and spending. Route: " + cls.Agent + " (" + cls.QueryType + ").",
		},
	}

	if conversationID != "" && cls.RequiresContext {
		s.mu.RLock()
		history := s.messages[conversationID]
		if len(history) > historyWindow {
			history = history[len(history)-historyWindow:]
		}
		for _, msg := range history {
			chatMessages = append(chatMessages, llm.ChatMessage{
				Role:    string(msg.Role),
				Content: msg.Content,
			})
		}
		s.mu.RUnlock()
	} else {
		chatMessages = append(chatMessages, llm.ChatMessage{
			Role:    string(model.RoleUser),
			Content: text,
		})
	}

	start := time.Now()
	resp, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{Messages: chatMessages})
	if err != nil {
		metrics.LLMCompletionDuration.WithLabelValues(s.llmClient.Name(), "error").Observe(time.Since(start).Seconds())
		s.logger.Error("LLM completion failed", zap.Error(err))
		return "", err
	}
	metrics.LLMCompletionDuration.WithLabelValues(s.llmClient.Name(), "success").Observe(time.Since(start).Seconds())

	return resp.Content, nil
}

func (s *MessageService) append(conversationID string, role model.Role, content string, metadata map[string]interface{}) model.Message {
	msg := model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}

	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.mu.Unlock()

	return msg
}
