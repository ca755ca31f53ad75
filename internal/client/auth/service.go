// Package auth клиентские сценарии входа, регистрации и выхода.
// Состояние сессии меняется только после подтверждения сервером.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/leadsauth/internal/client/session"
	"github.com/iudanet/leadsauth/internal/client/storage"
	"github.com/iudanet/leadsauth/internal/validation"
	"github.com/iudanet/leadsauth/pkg/api"
)

// DefaultStartupTimeout ограничение стартовой проверки who-am-I
const DefaultStartupTimeout = 5 * time.Second

// ErrNotAdmin сервер подтвердил сессию, но без прав администратора
var ErrNotAdmin = errors.New("account has no admin access")

// Service предоставляет функции авторизации
type Service struct {
	transport      Transport
	state          *session.State
	profiles       storage.ProfileStorage
	cookies        CookieClearer
	logger         *slog.Logger
	server         string
	startupTimeout time.Duration
	now            func() time.Time
}

// Config зависимости сервиса
type Config struct {
	Transport      Transport
	State          *session.State
	Profiles       storage.ProfileStorage
	Cookies        CookieClearer
	Logger         *slog.Logger
	Server         string // адрес сервера, сохраняется в профиле
	StartupTimeout time.Duration
}

// NewService создает новый сервис авторизации
func NewService(cfg Config) *Service {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		transport:      cfg.Transport,
		state:          cfg.State,
		profiles:       cfg.Profiles,
		cookies:        cfg.Cookies,
		logger:         cfg.Logger,
		server:         cfg.Server,
		startupTimeout: cfg.StartupTimeout,
		now:            time.Now,
	}
}

// Initialize выполняет стартовую проверку сессии. Любая ошибка означает
// неавторизованное состояние; после вызова состояние всегда инициализировано.
func (s *Service) Initialize(ctx context.Context) session.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, s.startupTimeout)
	defer cancel()

	user, err := s.transport.Me(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "no active session", slog.Any("error", err))
		s.state.Initialize(false, false)
		return s.state.Snapshot()
	}

	s.state.Initialize(true, user.IsAdmin)
	s.saveProfile(ctx, user)
	return s.state.Snapshot()
}

// Register регистрирует пользователя и сразу открывает сессию
func (s *Service) Register(ctx context.Context, email, password string) (*api.UserInfo, error) {
	if err := validation.ValidateCredentials(email, password); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	if _, err := s.transport.Register(ctx, email, password); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return s.confirm(ctx, false)
}

// Login выполняет вход пользователя
func (s *Service) Login(ctx context.Context, email, password string) (*api.UserInfo, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	if _, err := s.transport.Login(ctx, email, password); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return s.confirm(ctx, false)
}

// AdminLogin выполняет вход администратора
func (s *Service) AdminLogin(ctx context.Context, email, password string) (*api.UserInfo, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	if _, err := s.transport.AdminLogin(ctx, email, password); err != nil {
		return nil, fmt.Errorf("admin login request failed: %w", err)
	}
	return s.confirm(ctx, true)
}

// confirm подтверждает установленную сессию запросом who-am-I
func (s *Service) confirm(ctx context.Context, requireAdmin bool) (*api.UserInfo, error) {
	user, err := s.transport.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm session: %w", err)
	}
	if requireAdmin && !user.IsAdmin {
		return nil, ErrNotAdmin
	}

	s.state.LoggedIn(user.IsAdmin)
	s.saveProfile(ctx, user)
	return user, nil
}

// Whoami запрашивает текущего пользователя у сервера
func (s *Service) Whoami(ctx context.Context) (*api.UserInfo, error) {
	user, err := s.transport.Me(ctx)
	if err != nil {
		return nil, err
	}
	s.state.Confirmed(user.IsAdmin)
	s.saveProfile(ctx, user)
	return user, nil
}

// Logout завершает сессию на сервере и удаляет локальные данные.
// Локальные данные удаляются даже если сервер недоступен.
func (s *Service) Logout(ctx context.Context) error {
	serverErr := s.transport.Logout(ctx)
	if serverErr != nil {
		s.logger.WarnContext(ctx, "server logout failed", slog.Any("error", serverErr))
	}

	s.state.LoggedOut()

	var errs []error
	if s.cookies != nil {
		if err := s.cookies.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.profiles != nil {
		if err := s.profiles.DeleteProfile(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete profile: %w", err))
		}
	}
	if serverErr != nil {
		errs = append(errs, fmt.Errorf("server logout failed, local session cleared: %w", serverErr))
	}
	return errors.Join(errs...)
}

// LastProfile последний подтвержденный профиль, только для отображения
func (s *Service) LastProfile(ctx context.Context) (*storage.Profile, error) {
	if s.profiles == nil {
		return nil, storage.ErrProfileNotFound
	}
	return s.profiles.GetProfile(ctx)
}

func (s *Service) saveProfile(ctx context.Context, user *api.UserInfo) {
	if s.profiles == nil {
		return
	}
	err := s.profiles.SaveProfile(ctx, &storage.Profile{
		Server:      s.server,
		UserID:      user.ID,
		Email:       user.Email,
		IsAdmin:     user.IsAdmin,
		ConfirmedAt: s.now().Unix(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to save profile", slog.Any("error", err))
	}
}
