package handler

import (
	"net/http"

	"github.com/trackit-ai/assistant-go/internal/service"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	conversationService *service.ConversationService
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(convSvc *service.ConversationService) *HealthHandler {
	return &HealthHandler{
		conversationService: convSvc,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ready",
		"conversations": h.conversationService.Count(),
	})
}
