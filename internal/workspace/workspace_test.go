package workspace

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/handler"
	"github.com/trackit-ai/assistant-go/internal/llm"
	"github.com/trackit-ai/assistant-go/internal/registry"
	"github.com/trackit-ai/assistant-go/internal/service"
	"github.com/trackit-ai/assistant-go/internal/session"
	"github.com/trackit-ai/assistant-go/pkg/logger"
)

// newTestWorkspace runs the full stack: workspace and registry talking over
// HTTP to the development backend's services with the scripted answerer.
func newTestWorkspace(t *testing.T, userID string) (*Workspace, *registry.Registry, *service.ConversationService) {
	log := logger.NewNop()

	convSvc := service.NewConversationService(log)
	msgSvc := service.NewMessageService(convSvc, llm.NewScriptedClient(), log)
	conversationHandler := handler.NewConversationHandler(convSvc, msgSvc, log)

	r := chi.NewRouter()
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", conversationHandler.Create)
		r.Post("/quick-query", conversationHandler.QuickQuery)
		r.Get("/user/{userID}", conversationHandler.ListByUser)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", conversationHandler.Get)
			r.Delete("/", conversationHandler.Delete)
			r.Get("/messages", conversationHandler.Messages)
			r.Post("/chat", conversationHandler.Chat)
		})
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	client := api.New(server.URL, log)
	reg := registry.New(client, log)
	ws := New(client, reg, userID, log)

	return ws, reg, convSvc
}

func TestInitWithZeroConversationsCreatesAndBinds(t *testing.T) {
	ws, reg, _ := newTestWorkspace(t, "u-1")

	require.NoError(t, ws.Init(context.Background()))

	// A conversation was created and bound to a fresh session.
	assert.Equal(t, 1, reg.Len())
	active := ws.Active()
	assert.NotEmpty(t, active.ID)
	assert.Equal(t, "New Conversation", active.Title)

	ctl := ws.Controller()
	require.NotNil(t, ctl)
	assert.Equal(t, session.StateIdle, ctl.State())
	assert.Empty(t, ctl.Messages())
}

func TestInitBindsMostRecentConversation(t *testing.T) {
	ws, _, convSvc := newTestWorkspace(t, "u-1")

	ctx := context.Background()
	_, err := convSvc.Create(ctx, "u-1", "older")
	require.NoError(t, err)
	newer, err := convSvc.Create(ctx, "u-1", "newer")
	require.NoError(t, err)
	require.NoError(t, convSvc.Touch(ctx, newer.ID))

	require.NoError(t, ws.Init(ctx))
	assert.Equal(t, newer.ID, ws.Active().ID)
}

func TestSubmitRoundTripAndTitleHandOff(t *testing.T) {
	ws, reg, _ := newTestWorkspace(t, "u-1")
	ctx := context.Background()
	require.NoError(t, ws.Init(ctx))

	ctl := ws.Controller()
	long := "How much did I spend on food this month and last month across all my accounts?"
	require.NoError(t, ctl.Submit(ctx, long))

	msgs := ctl.Messages()
	require.Len(t, msgs, 2)
	assert.NotEmpty(t, msgs[1].Content)
	assert.Equal(t, "sql", msgs[1].Metadata["agent"])

	// The derived title reaches the registry's cache.
	assert.Equal(t, "How much did I spend on food t...", reg.Conversations()[0].Title)
}

func TestDeleteActiveReselectsRemaining(t *testing.T) {
	ws, reg, _ := newTestWorkspace(t, "u-1")
	ctx := context.Background()
	require.NoError(t, ws.Init(ctx))

	first := ws.Active()
	second, err := ws.NewConversation(ctx)
	require.NoError(t, err)
	require.Equal(t, second.ID, ws.Active().ID)

	require.NoError(t, ws.Delete(ctx, second.ID))

	// The remaining conversation takes over.
	assert.Equal(t, first.ID, ws.Active().ID)
	assert.Equal(t, 1, reg.Len())
}

func TestDeleteLastConversationCreatesReplacement(t *testing.T) {
	ws, reg, _ := newTestWorkspace(t, "u-1")
	ctx := context.Background()
	require.NoError(t, ws.Init(ctx))

	old := ws.Active()
	require.NoError(t, ws.Delete(ctx, old.ID))

	replacement := ws.Active()
	assert.NotEmpty(t, replacement.ID)
	assert.NotEqual(t, old.ID, replacement.ID)
	assert.Equal(t, 1, reg.Len())
}

func TestDeleteNonActiveOnlyPrunes(t *testing.T) {
	ws, reg, _ := newTestWorkspace(t, "u-1")
	ctx := context.Background()
	require.NoError(t, ws.Init(ctx))

	active := ws.Active()
	other, err := ws.NewConversation(ctx)
	require.NoError(t, err)

	// Go back to the first conversation, then delete the other one.
	require.NoError(t, ws.Select(ctx, active.ID))
	require.NoError(t, ws.Delete(ctx, other.ID))

	assert.Equal(t, active.ID, ws.Active().ID)
	assert.Equal(t, 1, reg.Len())
}

func TestSelectReloadsHistory(t *testing.T) {
	ws, _, _ := newTestWorkspace(t, "u-1")
	ctx := context.Background()
	require.NoError(t, ws.Init(ctx))

	first := ws.Active()
	require.NoError(t, ws.Controller().Submit(ctx, "what did I spend on coffee?"))

	_, err := ws.NewConversation(ctx)
	require.NoError(t, err)
	assert.Empty(t, ws.Controller().Messages())

	require.NoError(t, ws.Select(ctx, first.ID))
	msgs := ws.Controller().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "what did I spend on coffee?", msgs[0].Content)
}
