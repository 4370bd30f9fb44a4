// Package handler provides HTTP handlers for the development backend.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/trackit-ai/assistant-go/internal/middleware"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/internal/service"
	"github.com/trackit-ai/assistant-go/pkg/logger"
)

// ConversationHandler handles the conversation endpoints.
type ConversationHandler struct {
	conversationService *service.ConversationService
	messageService      *service.MessageService
	logger              *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(
	convSvc *service.ConversationService,
	msgSvc *service.MessageService,
	log *logger.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversationService: convSvc,
		messageService:      msgSvc,
		logger:              log,
	}
}

// Create handles POST /conversations/
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.conversationService.Create(r.Context(), req.UserID, req.Title)
	if err != nil {
		h.logger.Error("failed to create conversation")
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// ListByUser handles GET /conversations/user/{userID}
func (h *ConversationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := parseLimit(r, 50)

	convs, err := h.conversationService.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list conversations")
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	if convs == nil {
		convs = []model.Conversation{}
	}

	writeJSON(w, http.StatusOK, model.ConversationList{
		Conversations: convs,
		Total:         len(convs),
	})
}

// Get handles GET /conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	conv, err := h.conversationService.Get(r.Context(), conversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conv)
}

// Messages handles GET /conversations/{id}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	limit := parseLimit(r, 50)

	msgs, err := h.messageService.List(r.Context(), conversationID, limit)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to list messages")
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	writeJSON(w, http.StatusOK, model.MessageList{
		Messages: msgs,
		Total:    len(msgs),
	})
}

// Chat handles POST /conversations/{id}/chat?user_id={userID}
func (h *ConversationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")

	if err := middleware.ValidateUserID(userID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.messageService.Chat(r.Context(), conversationID, userID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("chat turn failed")
		writeError(w, http.StatusInternalServerError, "failed to process chat message")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// QuickQuery handles POST /conversations/quick-query
func (h *ConversationHandler) QuickQuery(w http.ResponseWriter, r *http.Request) {
	var req model.QuickQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateUserID(req.UserID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.messageService.QuickQuery(r.Context(), req.UserID, req.Message)
	if err != nil {
		h.logger.Error("quick query failed")
		writeError(w, http.StatusInternalServerError, "failed to process query")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")

	if err := h.conversationService.Delete(r.Context(), conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	// Deletion cascades to the conversation's messages.
	h.messageService.Drop(conversationID)

	w.WriteHeader(http.StatusNoContent)
}

func parseLimit(r *http.Request, fallback int) int {
	limit := fallback
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	return limit
}
