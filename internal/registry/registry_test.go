package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackit-ai/assistant-go/internal/api"
	"github.com/trackit-ai/assistant-go/internal/model"
	"github.com/trackit-ai/assistant-go/pkg/logger"
)

func newTestRegistry(handler http.Handler) (*Registry, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := api.New(server.URL, logger.NewNop())
	return New(client, logger.NewNop()), server
}

func TestLoadCachesList(t *testing.T) {
	now := time.Now()
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.ConversationList{
			Conversations: []model.Conversation{
				{ID: "c-2", Title: "newer", UpdatedAt: now},
				{ID: "c-1", Title: "older", UpdatedAt: now.Add(-time.Hour)},
			},
			Total: 2,
		})
	}))
	defer server.Close()

	convs, err := reg.Load(context.Background(), "u-1", 50)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// Ordering is the server's: most recently updated first.
	assert.Equal(t, "c-2", convs[0].ID)
	assert.Equal(t, 2, reg.Len())
}

func TestLoadFailureDegradesToEmptyCache(t *testing.T) {
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := reg.Load(context.Background(), "u-1", 50)
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestCreateRequiresUserIDBeforeNetwork(t *testing.T) {
	var requests atomic.Int64
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	_, err := reg.Create(context.Background(), "", "")
	var validationErr *api.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, int64(0), requests.Load())
}

func TestCreatePrependsToCache(t *testing.T) {
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(model.ConversationList{
				Conversations: []model.Conversation{{ID: "c-1", Title: "existing"}},
				Total:         1,
			})
		case http.MethodPost:
			json.NewEncoder(w).Encode(model.Conversation{ID: "c-2", Title: model.DefaultTitle, IsActive: true})
		}
	}))
	defer server.Close()

	_, err := reg.Load(context.Background(), "u-1", 50)
	require.NoError(t, err)

	conv, err := reg.Create(context.Background(), "u-1", "")
	require.NoError(t, err)
	assert.Equal(t, "c-2", conv.ID)

	convs := reg.Conversations()
	require.Len(t, convs, 2)
	assert.Equal(t, "c-2", convs[0].ID)
}

func TestRemovePrunesCache(t *testing.T) {
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(model.ConversationList{
				Conversations: []model.Conversation{{ID: "c-1"}, {ID: "c-2"}},
				Total:         2,
			})
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer server.Close()

	_, err := reg.Load(context.Background(), "u-1", 50)
	require.NoError(t, err)

	require.NoError(t, reg.Remove(context.Background(), "c-1"))

	convs := reg.Conversations()
	require.Len(t, convs, 1)
	assert.Equal(t, "c-2", convs[0].ID)
}

func TestRemoveFailureKeepsCache(t *testing.T) {
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(model.ConversationList{
				Conversations: []model.Conversation{{ID: "c-1"}},
				Total:         1,
			})
		case http.MethodDelete:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	_, err := reg.Load(context.Background(), "u-1", 50)
	require.NoError(t, err)

	require.Error(t, reg.Remove(context.Background(), "c-1"))
	assert.Equal(t, 1, reg.Len())
}

func TestRenameCached(t *testing.T) {
	reg, server := newTestRegistry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.ConversationList{
			Conversations: []model.Conversation{{ID: "c-1", Title: model.DefaultTitle}},
			Total:         1,
		})
	}))
	defer server.Close()

	_, err := reg.Load(context.Background(), "u-1", 50)
	require.NoError(t, err)

	reg.RenameCached("c-1", "Groceries this month")
	assert.Equal(t, "Groceries this month", reg.Conversations()[0].Title)

	// Unknown ids are ignored.
	reg.RenameCached("c-404", "whatever")
}
