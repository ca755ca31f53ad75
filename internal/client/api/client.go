// Package api HTTP клиент сервиса аутентификации.
// Токены живут только в cookie jar; при 401 клиент один раз обновляет сессию и повторяет запрос.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iudanet/leadsauth/internal/client/session"
	"github.com/iudanet/leadsauth/pkg/api"
)

const (
	// DefaultTimeout таймаут одного HTTP запроса
	DefaultTimeout = 30 * time.Second
	// DefaultRefreshTimeout верхняя граница ожидания обновления сессии
	DefaultRefreshTimeout = 10 * time.Second
)

const (
	loginExpiredRedirect      = "/login?expired=true"
	adminLoginExpiredRedirect = "/admin/login?expired=true"
)

// ErrRefreshTimeout обновление сессии не уложилось в отведенное время
var ErrRefreshTimeout = errors.New("session refresh timed out")

// StatusError ответ сервера с неуспешным статусом
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// SessionExpiredError сессию не удалось продлить, пользователь должен войти заново
type SessionExpiredError struct {
	RedirectTo string
	Err        error
}

func (e *SessionExpiredError) Error() string {
	return "session expired, sign in again"
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}

// IsStatus проверяет, что ошибка является ответом сервера с указанным статусом
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client HTTP клиент с перехватом 401 и продлением сессии
type Client struct {
	httpClient     *http.Client
	baseURL        string
	state          *session.State
	logger         *slog.Logger
	refreshTimeout time.Duration
	refresh        singleflight.Group
}

// Option настройка клиента
type Option func(*Client)

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout задает таймаут одного запроса
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRefreshTimeout задает предельное время обновления сессии
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.refreshTimeout = d
	}
}

// NewClient создает новый API клиент. Jar хранит cookies сессии между запросами.
func NewClient(baseURL string, jar http.CookieJar, state *session.State, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		state:   state,
		logger:  slog.New(slog.DiscardHandler),
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: DefaultTimeout,
		},
		refreshTimeout: DefaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State состояние сессии, которое обновляет клиент
func (c *Client) State() *session.State {
	return c.state
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, email, password string) (*api.UserInfo, error) {
	return c.credentials(ctx, api.PathRegister, email, password)
}

// Login выполняет вход пользователя
func (c *Client) Login(ctx context.Context, email, password string) (*api.UserInfo, error) {
	return c.credentials(ctx, api.PathLogin, email, password)
}

// AdminLogin выполняет вход администратора
func (c *Client) AdminLogin(ctx context.Context, email, password string) (*api.UserInfo, error) {
	return c.credentials(ctx, api.PathAdminLogin, email, password)
}

func (c *Client) credentials(ctx context.Context, path, email, password string) (*api.UserInfo, error) {
	var resp api.AuthResponse
	if err := c.Do(ctx, http.MethodPost, path, api.CredentialsRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Me возвращает пользователя текущей сессии
func (c *Client) Me(ctx context.Context) (*api.UserInfo, error) {
	var resp api.AuthResponse
	if err := c.Do(ctx, http.MethodPost, api.PathMe, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

// Logout завершает сессию на всех устройствах
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, api.PathLogout, nil, nil)
}

// Refresh обновляет пару токенов. Параллельные вызовы разделяют один запрос к серверу.
func (c *Client) Refresh(ctx context.Context) (*api.UserInfo, error) {
	ch := c.refresh.DoChan("refresh", func() (any, error) {
		// Обновление не отменяется вместе с вызвавшим его запросом
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()

		var resp api.AuthResponse
		if err := c.send(rctx, http.MethodPost, api.PathRefresh, nil, &resp); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, ErrRefreshTimeout
			}
			return nil, err
		}
		c.state.Confirmed(resp.User.IsAdmin)
		return &resp.User, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*api.UserInfo), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// UserEvents журнал аутентификации пользователя (только администраторы)
func (c *Client) UserEvents(ctx context.Context, userID string, limit int) (*api.AuthEventsResponse, error) {
	path := strings.Replace(api.PathUserEvents, "{id}", userID, 1)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	var resp api.AuthEventsResponse
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Do выполняет запрос к API. На 401 от защищенного маршрута сессия обновляется
// и запрос повторяется ровно один раз.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	err := c.send(ctx, method, path, body, result)
	if err == nil || !IsStatus(err, http.StatusUnauthorized) || !renewable(path) {
		return err
	}

	// Роль нужна до очистки состояния, чтобы выбрать страницу входа
	wasAdmin := c.state.Snapshot().IsAdmin

	if _, rerr := c.Refresh(ctx); rerr != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "session renewal failed", slog.String("path", path), slog.Any("error", rerr))
		return c.expire(wasAdmin, rerr)
	}

	err = c.send(ctx, method, path, body, result)
	if IsStatus(err, http.StatusUnauthorized) {
		c.logger.WarnContext(ctx, "request rejected after session renewal", slog.String("path", path))
		return c.expire(wasAdmin, err)
	}
	return err
}

func (c *Client) expire(wasAdmin bool, cause error) error {
	c.state.RenewalFailed()
	redirect := loginExpiredRedirect
	if wasAdmin {
		redirect = adminLoginExpiredRedirect
	}
	return &SessionExpiredError{RedirectTo: redirect, Err: cause}
}

// renewable маршруты, на 401 которых сессия не обновляется
func renewable(path string) bool {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	switch path {
	case api.PathLogin, api.PathRegister, api.PathAdminLogin, api.PathRefresh:
		return false
	}
	return true
}

// send выполняет один HTTP запрос без перехвата
func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			se.Message = errResp.Message
		} else {
			se.Message = strings.TrimSpace(string(respBody))
		}
		return se
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
