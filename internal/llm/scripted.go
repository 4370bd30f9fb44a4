package llm

import (
	"context"
	"fmt"
	"time"
)

// ScriptedClient answers with deterministic canned text. It is the default
// answerer so the development backend works without any API key.
type ScriptedClient struct{}

// NewScriptedClient creates a scripted client.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// Name returns the provider name.
func (c *ScriptedClient) Name() string {
	return "scripted"
}

// Complete echoes the last user message into a canned answer.
func (c *ScriptedClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	var lastUser string
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			lastUser = msg.Content
		}
	}

	content := fmt.Sprintf(
		"Here's what I found for %q: you have no receipt data loaded in the development backend, "+
			"so this is a placeholder answer. Connect a real provider to get live analysis.",
		lastUser,
	)

	return &CompletionResponse{
		Content:    content,
		Model:      "scripted",
		TokensIn:   len(lastUser) / 4,
		TokensOut:  len(content) / 4,
		StopReason: "end_turn",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
