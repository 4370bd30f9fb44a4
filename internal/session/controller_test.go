package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
)

// testBackend serves the two endpoints the controller touches and lets tests
// gate the chat response to observe the sending state.
type testBackend struct {
	server    *httptest.Server
	chatCalls atomic.Int64

	history  model.MessageList
	loadFail bool
	chatFail bool

	arrived chan struct{}
	release chan struct{}
}

func newTestBackend(t *testing.T) *testBackend {
	b := &testBackend{}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			if b.loadFail {
				http.Error(w, "history unavailable", http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(b.history)
		case strings.HasSuffix(r.URL.Path, "/chat"):
			b.chatCalls.Add(1)
			if b.arrived != nil {
				b.arrived <- struct{}{}
				<-b.release
			}
			if b.chatFail {
				http.Error(w, "agent exploded", http.StatusInternalServerError)
				return
			}
			var req model.ChatRequest
			json.NewDecoder(r.Body).Decode(&req)
			json.NewEncoder(w).Encode(model.ChatResponse{
				MessageID: "srv-1",
				Response:  "answer to: " + req.Message,
				AgentUsed: model.AgentSQL,
				Classification: &model.Classification{
					Agent:      model.AgentSQL,
					Complexity: 1,
					QueryType:  "data_retrieval",
				},
			})
		default:
			http.NotFound(w, r)
		}
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *testBackend) controller(t *testing.T, opts ...Option) *Controller {
	client := api.New(b.server.URL, logger.NewNop())
	ctl := NewController(client, "c-1", "u-1", logger.NewNop(), opts...)
	ctl.Load(context.Background())
	require.Equal(t, StateIdle, ctl.State())
	return ctl
}

func TestSubmitAppendsTwoEntriesBeforeSettlement(t *testing.T) {
	b := newTestBackend(t)
	b.arrived = make(chan struct{})
	b.release = make(chan struct{})

	ctl := b.controller(t)

	done := make(chan error, 1)
	go func() {
		done <- ctl.Submit(context.Background(), "  how much did I spend?  ")
	}()

	<-b.arrived

	// The request is in flight: both optimistic entries must already exist.
	assert.Equal(t, StateSending, ctl.State())
	msgs := ctl.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "how much did I spend?", msgs[0].Content)
	assert.Equal(t, model.OriginOptimisticUser, msgs[0].Origin)

	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "", msgs[1].Content)
	assert.True(t, msgs[1].Pending())

	close(b.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, ctl.State())
}

func TestSubmitSuccessReconciliation(t *testing.T) {
	b := newTestBackend(t)
	ctl := b.controller(t)

	require.NoError(t, ctl.Submit(context.Background(), "total spend?"))

	msgs := ctl.Messages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.False(t, msg.Pending())
	}

	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, "answer to: total spend?", last.Content)
	assert.Equal(t, "srv-1", last.ID)
	assert.Equal(t, model.OriginPersisted, last.Origin)
	assert.Equal(t, model.AgentSQL, last.Metadata["agent"])
	assert.NotContains(t, last.Metadata, "error")
}

func TestSubmitFailureAppendsErrorBubble(t *testing.T) {
	b := newTestBackend(t)
	b.chatFail = true
	ctl := b.controller(t)

	require.NoError(t, ctl.Submit(context.Background(), "total spend?"))

	msgs := ctl.Messages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.False(t, msg.Pending())
	}

	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Equal(t, errorReply, last.Content)
	assert.Equal(t, true, last.Metadata["error"])
	assert.Equal(t, model.OriginErrorAssistant, last.Origin)
	assert.Equal(t, StateIdle, ctl.State())

	// The session is ready for a retry.
	require.NoError(t, func() error {
		b.chatFail = false
		return ctl.Submit(context.Background(), "try again")
	}())
	assert.Equal(t, int64(2), b.chatCalls.Load())
}

func TestBlankSubmitIsIdempotentNoOp(t *testing.T) {
	b := newTestBackend(t)
	ctl := b.controller(t)

	var validationErr *api.ValidationError
	for i := 0; i < 3; i++ {
		err := ctl.Submit(context.Background(), "")
		require.True(t, errors.As(err, &validationErr))
		err = ctl.Submit(context.Background(), "   \t  ")
		require.True(t, errors.As(err, &validationErr))
	}

	assert.Empty(t, ctl.Messages())
	assert.Equal(t, int64(0), b.chatCalls.Load())
}

func TestSubmitWhileSendingIsRejected(t *testing.T) {
	b := newTestBackend(t)
	b.arrived = make(chan struct{})
	b.release = make(chan struct{})

	ctl := b.controller(t)

	done := make(chan error, 1)
	go func() {
		done <- ctl.Submit(context.Background(), "first")
	}()

	<-b.arrived

	err := ctl.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, ctl.Messages(), 2)

	close(b.release)
	require.NoError(t, <-done)

	assert.Equal(t, int64(1), b.chatCalls.Load())
}

func TestSubmitTimeoutForcesFailurePath(t *testing.T) {
	b := newTestBackend(t)
	b.arrived = make(chan struct{}, 1)
	b.release = make(chan struct{})

	ctl := b.controller(t, WithChatTimeout(50*time.Millisecond))

	done := make(chan error, 1)
	go func() {
		done <- ctl.Submit(context.Background(), "slow question")
	}()

	<-b.arrived
	require.NoError(t, <-done)
	close(b.release)

	msgs := ctl.Messages()
	require.Len(t, msgs, 2)
	last := msgs[len(msgs)-1]
	assert.Equal(t, true, last.Metadata["error"])
	assert.Equal(t, StateIdle, ctl.State())
}

func TestLoadFailureDegradesToEmptyTimeline(t *testing.T) {
	b := newTestBackend(t)
	b.loadFail = true

	client := api.New(b.server.URL, logger.NewNop())
	ctl := NewController(client, "c-1", "u-1", logger.NewNop())
	ctl.Load(context.Background())

	assert.Equal(t, StateIdle, ctl.State())
	assert.Empty(t, ctl.Messages())

	// Sending still works after a failed load.
	require.NoError(t, ctl.Submit(context.Background(), "hello"))
	assert.Len(t, ctl.Messages(), 2)
}

func TestSubmitBeforeLoadIsRejected(t *testing.T) {
	b := newTestBackend(t)
	client := api.New(b.server.URL, logger.NewNop())
	ctl := NewController(client, "c-1", "u-1", logger.NewNop())

	err := ctl.Submit(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Empty(t, ctl.Messages())
}

func TestTitleDerivedOnFirstTurnOnly(t *testing.T) {
	b := newTestBackend(t)
	ctl := b.controller(t)

	var titles []string
	ctl.OnTitle(func(title string) {
		titles = append(titles, title)
	})

	long := "How much did I spend on food this month and last month across all my accounts?"
	require.NoError(t, ctl.Submit(context.Background(), long))
	require.NoError(t, ctl.Submit(context.Background(), "and on travel?"))

	require.Len(t, titles, 1)
	assert.Equal(t, "How much did I spend on food t...", titles[0])
}

func TestTitleNotDerivedForExistingHistory(t *testing.T) {
	b := newTestBackend(t)
	b.history = model.MessageList{
		Messages: []model.Message{{ID: "m-0", Role: model.RoleUser, Content: "earlier"}},
		Total:    1,
	}
	ctl := b.controller(t)

	called := false
	ctl.OnTitle(func(string) { called = true })

	require.NoError(t, ctl.Submit(context.Background(), "a follow-up question"))
	assert.False(t, called)
}

func TestTitleNotDerivedOnFailedFirstTurn(t *testing.T) {
	b := newTestBackend(t)
	b.chatFail = true
	ctl := b.controller(t)

	called := false
	ctl.OnTitle(func(string) { called = true })

	require.NoError(t, ctl.Submit(context.Background(), "first question"))
	assert.False(t, called)
}

func TestDeriveTitle(t *testing.T) {
	long := "How much did I spend on food this month and last month across all my accounts?"
	assert.Equal(t, "How much did I spend on food t...", DeriveTitle(long))
	assert.Equal(t, "Hi", DeriveTitle("Hi"))
	assert.Equal(t, strings.Repeat("a", 30), DeriveTitle(strings.Repeat("a", 30)))
}
