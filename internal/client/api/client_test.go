package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/leadsauth/internal/client/session"
	"github.com/iudanet/leadsauth/pkg/api"
)

// fakeServer минимальный сервер аутентификации с одноразовыми refresh токенами
type fakeServer struct {
	*httptest.Server

	mu         sync.Mutex
	generation int
	access     string
	refresh    string
	user       api.UserInfo

	refreshCalls atomic.Int32
	refreshDelay time.Duration
	refreshFails bool
	rejectAll    bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{user: api.UserInfo{ID: "user-1", Email: "alice@example.com"}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var req api.CredentialsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret123" {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		fs.issue(w)
	})
	mux.HandleFunc("POST "+api.PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		fs.refreshCalls.Add(1)
		time.Sleep(fs.refreshDelay)

		fs.mu.Lock()
		c, err := r.Cookie(api.RefreshCookie)
		valid := err == nil && c.Value == fs.refresh && !fs.refreshFails
		fs.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "")
			return
		}
		fs.issue(w)
	})
	protected := func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		c, err := r.Cookie(api.SessionCookie)
		valid := err == nil && c.Value == fs.access && !fs.rejectAll
		user := fs.user
		fs.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "")
			return
		}
		_ = json.NewEncoder(w).Encode(api.AuthResponse{User: user})
	}
	mux.HandleFunc("POST "+api.PathMe, protected)
	mux.HandleFunc("GET /api/admin/users/{id}/auth-events", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		c, err := r.Cookie(api.SessionCookie)
		valid := err == nil && c.Value == fs.access
		fs.mu.Unlock()
		if !valid {
			writeError(w, http.StatusUnauthorized, "")
			return
		}
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(api.AuthEventsResponse{Events: []api.AuthEventInfo{{ID: "e1", Type: "login"}}})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) issue(w http.ResponseWriter) {
	fs.mu.Lock()
	fs.generation++
	fs.access = fmt.Sprintf("access-%d", fs.generation)
	fs.refresh = fmt.Sprintf("refresh-%d", fs.generation)
	access, refresh, user := fs.access, fs.refresh, fs.user
	fs.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: api.SessionCookie, Value: access, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: api.RefreshCookie, Value: refresh, Path: "/", HttpOnly: true})
	_ = json.NewEncoder(w).Encode(api.AuthResponse{User: user})
}

// expireAccess имитирует истечение сессионного токена
func (fs *fakeServer) expireAccess() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.access = "expired"
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: http.StatusText(status), Message: msg})
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return NewClient(baseURL, jar, session.NewState(), opts...)
}

func loggedIn(t *testing.T, fs *fakeServer, admin bool, opts ...Option) *Client {
	t.Helper()
	fs.mu.Lock()
	fs.user.IsAdmin = admin
	fs.mu.Unlock()

	c := newTestClient(t, fs.URL, opts...)
	user, err := c.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	c.State().Initialize(true, user.IsAdmin)
	return c
}

func TestNewClient(t *testing.T) {
	c := newTestClient(t, "http://localhost:8080/")

	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, DefaultRefreshTimeout, c.refreshTimeout)
	assert.NotNil(t, c.httpClient.Jar)

	c = newTestClient(t, "http://localhost:8080", WithTimeout(time.Second), WithRefreshTimeout(2*time.Second))
	assert.Equal(t, time.Second, c.httpClient.Timeout)
	assert.Equal(t, 2*time.Second, c.refreshTimeout)
}

func TestClient_LoginAndMe(t *testing.T) {
	fs := newFakeServer(t)
	c := loggedIn(t, fs, false)

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, int32(0), fs.refreshCalls.Load())
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "json error",
			status:     http.StatusConflict,
			body:       `{"error":"Conflict","message":"email already registered"}`,
			wantStatus: http.StatusConflict,
			wantMsg:    "email already registered",
		},
		{
			name:       "plain text error",
			status:     http.StatusInternalServerError,
			body:       "Internal Server Error",
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, api.PathRegister, r.URL.Path)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			user, err := c.Register(context.Background(), "alice@example.com", "secret123")

			require.Error(t, err)
			assert.Nil(t, user)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantStatus, se.StatusCode)
			assert.Equal(t, tt.wantMsg, se.Message)
		})
	}
}

// 401 от маршрутов входа отдается как есть, без обновления сессии
func TestClient_NoRenewalOnCredentialRoutes(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs.URL)
	c.State().Initialize(false, false)

	_, err := c.Login(context.Background(), "alice@example.com", "wrong")

	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	var expired *SessionExpiredError
	assert.False(t, errors.As(err, &expired))
	assert.Equal(t, int32(0), fs.refreshCalls.Load())
}

func TestClient_RenewsAndRetries(t *testing.T) {
	fs := newFakeServer(t)
	c := loggedIn(t, fs, false)
	fs.expireAccess()

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, int32(1), fs.refreshCalls.Load())
	assert.True(t, c.State().Snapshot().Authenticated)
}

func TestClient_RenewalFailure(t *testing.T) {
	tests := []struct {
		name     string
		admin    bool
		redirect string
	}{
		{name: "user", admin: false, redirect: "/login?expired=true"},
		{name: "admin", admin: true, redirect: "/admin/login?expired=true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t)
			c := loggedIn(t, fs, tt.admin)
			fs.expireAccess()
			fs.refreshFails = true

			_, err := c.Me(context.Background())

			var expired *SessionExpiredError
			require.ErrorAs(t, err, &expired)
			assert.Equal(t, tt.redirect, expired.RedirectTo)

			snap := c.State().Snapshot()
			assert.False(t, snap.Authenticated)
			assert.False(t, snap.IsAdmin)
			assert.True(t, snap.Initialized)
		})
	}
}

// Повторный запрос после успешного обновления не порождает еще одно обновление
func TestClient_RetryRejectedOnce(t *testing.T) {
	fs := newFakeServer(t)
	c := loggedIn(t, fs, false)
	fs.mu.Lock()
	fs.rejectAll = true
	fs.mu.Unlock()

	_, err := c.Me(context.Background())

	var expired *SessionExpiredError
	require.ErrorAs(t, err, &expired)
	assert.Equal(t, "/login?expired=true", expired.RedirectTo)
	assert.Equal(t, int32(1), fs.refreshCalls.Load())
	assert.False(t, c.State().Snapshot().Authenticated)
}

func TestClient_ConcurrentRenewalIsShared(t *testing.T) {
	fs := newFakeServer(t)
	fs.refreshDelay = 100 * time.Millisecond
	c := loggedIn(t, fs, false)
	fs.expireAccess()

	const callers = 5
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = c.Me(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	// Одноразовый refresh токен предъявлен серверу один раз
	assert.Equal(t, int32(1), fs.refreshCalls.Load())
}

func TestClient_RefreshTimeout(t *testing.T) {
	fs := newFakeServer(t)
	fs.refreshDelay = 300 * time.Millisecond
	c := loggedIn(t, fs, false, WithRefreshTimeout(50*time.Millisecond))
	fs.expireAccess()

	_, err := c.Me(context.Background())

	var expired *SessionExpiredError
	require.ErrorAs(t, err, &expired)
	assert.ErrorIs(t, err, ErrRefreshTimeout)
	assert.False(t, c.State().Snapshot().Authenticated)
}

func TestClient_CallerCancellationKeepsState(t *testing.T) {
	fs := newFakeServer(t)
	fs.refreshDelay = 200 * time.Millisecond
	c := loggedIn(t, fs, false)
	fs.expireAccess()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Me(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// Отмена вызывающего не считается провалом обновления
	assert.True(t, c.State().Snapshot().Authenticated)
}

func TestClient_UserEvents(t *testing.T) {
	fs := newFakeServer(t)
	c := loggedIn(t, fs, true)
	fs.expireAccess()

	resp, err := c.UserEvents(context.Background(), "user-1", 5)
	require.NoError(t, err)
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "login", resp.Events[0].Type)
	assert.Equal(t, int32(1), fs.refreshCalls.Load())
}

func TestRenewable(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{api.PathMe, true},
		{api.PathLogout, true},
		{"/api/admin/users/1/auth-events?limit=5", true},
		{api.PathLogin, false},
		{api.PathRegister, false},
		{api.PathAdminLogin, false},
		{api.PathRefresh, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, renewable(tt.path))
		})
	}
}
