package model

// Agent names reported by the backend's query router.
const (
	AgentSQL      = "sql"
	AgentAnalysis = "analysis"
	AgentHybrid   = "hybrid"
)

// ChatRequest is the request body for a chat turn.
type ChatRequest struct {
	Message string `json:"message"`
}

// QuickQueryRequest is the request body for a one-shot query without a
// persistent conversation.
type QuickQueryRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Classification describes how the backend routed a query.
type Classification struct {
	Agent           string `json:"agent"`
	Complexity      int    `json:"complexity"`
	RequiresContext bool   `json:"requires_context"`
	QueryType       string `json:"query_type"`
	Reasoning       string `json:"reasoning"`
}

// ChatResponse is the backend's answer to a chat turn.
type ChatResponse struct {
	MessageID      string                 `json:"message_id"`
	Response       string                 `json:"response"`
	ConversationID string                 `json:"conversation_id"`
	AgentUsed      string                 `json:"agent_used"`
	Classification *Classification        `json:"classification,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}
