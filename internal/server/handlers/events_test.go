package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/pkg/api"
)

// mockEventStorage is a map-backed EventStorage for testing
type mockEventStorage struct {
	events    map[string][]*models.AuthEvent
	err       error
	lastLimit int
}

func (m *mockEventStorage) SaveEvent(ctx context.Context, event *models.AuthEvent) error {
	m.events[event.UserID] = append([]*models.AuthEvent{event}, m.events[event.UserID]...)
	return nil
}

func (m *mockEventStorage) ListUserEvents(ctx context.Context, userID string, limit int) ([]*models.AuthEvent, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	events := m.events[userID]
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func serveEvents(h *EventsHandler, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get(api.PathUserEvents, h.ListUserEvents)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestEventsHandler_ListUserEvents(t *testing.T) {
	store := &mockEventStorage{events: make(map[string][]*models.AuthEvent)}
	now := time.Now().UTC().Truncate(time.Second)
	for i, typ := range []models.AuthEventType{models.EventRegister, models.EventRefresh, models.EventLogout} {
		require.NoError(t, store.SaveEvent(context.Background(), &models.AuthEvent{
			ID:        string(typ),
			UserID:    "u1",
			Type:      typ,
			IP:        "10.0.0.1",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	h := NewEventsHandler(setupTestLogger(), store)

	w := serveEvents(h, "/api/admin/users/u1/auth-events?limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.AuthEventsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, "logout", resp.Events[0].Type)
	assert.Equal(t, "refresh", resp.Events[1].Type)
	assert.Equal(t, 2, store.lastLimit)

	w = serveEvents(h, "/api/admin/users/nobody/auth-events")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[]}`, w.Body.String())
	assert.Equal(t, defaultEventsLimit, store.lastLimit)

	serveEvents(h, "/api/admin/users/u1/auth-events?limit=100000")
	assert.Equal(t, maxEventsLimit, store.lastLimit)
}

func TestEventsHandler_Errors(t *testing.T) {
	store := &mockEventStorage{events: make(map[string][]*models.AuthEvent)}
	h := NewEventsHandler(setupTestLogger(), store)

	w := serveEvents(h, "/api/admin/users/u1/auth-events?limit=abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serveEvents(h, "/api/admin/users/u1/auth-events?limit=-1")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	store.err = errors.New("db closed")
	w = serveEvents(h, "/api/admin/users/u1/auth-events")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
