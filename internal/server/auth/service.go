// Package auth implements credential verification, session issuance and
// the refresh token rotation protocol.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/leadsauth/internal/crypto"
	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/audit"
	"github.com/iudanet/leadsauth/internal/server/jwt"
	"github.com/iudanet/leadsauth/internal/server/metrics"
	"github.com/iudanet/leadsauth/internal/server/storage"
	"github.com/iudanet/leadsauth/internal/validation"
)

// LedgerFailurePolicy определяет поведение при сбое записи в журнал при входе
type LedgerFailurePolicy string

const (
	// LedgerStrict вход завершается ошибкой, cookies не выставляются
	LedgerStrict LedgerFailurePolicy = "strict"
	// LedgerLenient сбой логируется, вход продолжается без возможности refresh
	LedgerLenient LedgerFailurePolicy = "lenient"
)

// Значения по умолчанию
const (
	DefaultRotationTimeout = 10 * time.Second
	DefaultReuseGrace      = 5 * time.Second
)

// Flow labels
const (
	flowRegister   = "register"
	flowLogin      = "login"
	flowAdminLogin = "admin_login"
)

// ClientInfo метаданные клиента, сохраняемые в журнале и событиях
type ClientInfo struct {
	IP        string
	UserAgent string
}

// Session пользователь и выданная ему пара токенов
type Session struct {
	User   *models.User
	Tokens *jwt.TokenPair
}

// SessionRevoker отзывает уже выданные токены сессии пользователя
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID string, at time.Time) error
	IsRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// Options настройки сервиса
type Options struct {
	LedgerFailurePolicy LedgerFailurePolicy
	// ReuseRevokesChain отзывает всю цепочку при повторном предъявлении замененного токена
	ReuseRevokesChain bool
	RotationTimeout   time.Duration
	// ReuseGracePeriod окно, в котором повторное предъявление считается гонкой, а не атакой
	ReuseGracePeriod time.Duration
}

// DefaultOptions returns strict ledger handling with chain revocation on reuse.
func DefaultOptions() Options {
	return Options{
		LedgerFailurePolicy: LedgerStrict,
		ReuseRevokesChain:   true,
		RotationTimeout:     DefaultRotationTimeout,
		ReuseGracePeriod:    DefaultReuseGrace,
	}
}

// Option настраивает Service
type Option func(*Service)

// WithEvents включает журнал событий аутентификации
func WithEvents(events *audit.Recorder) Option {
	return func(s *Service) { s.events = events }
}

// WithMetrics включает счетчики Prometheus
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRevoker включает отзыв токенов сессии при выходе
func WithRevoker(r SessionRevoker) Option {
	return func(s *Service) { s.revoker = r }
}

// WithClock подменяет источник времени (для тестов)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service объединяет Verifier, Issuer, журнал и ротацию
type Service struct {
	logger   *slog.Logger
	users    storage.UserStorage
	ledger   storage.TokenStorage
	issuer   *jwt.Issuer
	hasher   *crypto.PasswordHasher
	verifier *Verifier
	rotator  *Rotator
	events   *audit.Recorder
	metrics  *metrics.Metrics
	revoker  SessionRevoker
	now      func() time.Time
	opts     Options
}

// NewService создает сервис аутентификации
func NewService(
	logger *slog.Logger,
	users storage.UserStorage,
	ledger storage.TokenStorage,
	issuer *jwt.Issuer,
	hasher *crypto.PasswordHasher,
	opts Options,
	extra ...Option,
) (*Service, error) {
	switch opts.LedgerFailurePolicy {
	case "":
		opts.LedgerFailurePolicy = LedgerStrict
	case LedgerStrict, LedgerLenient:
	default:
		return nil, fmt.Errorf("unknown ledger failure policy %q", opts.LedgerFailurePolicy)
	}
	if opts.RotationTimeout <= 0 {
		opts.RotationTimeout = DefaultRotationTimeout
	}
	if opts.ReuseGracePeriod < 0 {
		opts.ReuseGracePeriod = 0
	}

	verifier, err := NewVerifier(users, hasher)
	if err != nil {
		return nil, err
	}

	s := &Service{
		logger:   logger,
		users:    users,
		ledger:   ledger,
		issuer:   issuer,
		hasher:   hasher,
		verifier: verifier,
		now:      time.Now,
		opts:     opts,
	}
	for _, opt := range extra {
		opt(s)
	}

	s.rotator = &Rotator{
		logger:            logger,
		users:             users,
		ledger:            ledger,
		issuer:            issuer,
		events:            s.events,
		metrics:           s.metrics,
		revoker:           s.revoker,
		now:               s.now,
		timeout:           opts.RotationTimeout,
		reuseGrace:        opts.ReuseGracePeriod,
		reuseRevokesChain: opts.ReuseRevokesChain,
	}

	return s, nil
}

// Issuer returns the token issuer used by the service.
func (s *Service) Issuer() *jwt.Issuer {
	return s.issuer
}

// Register создает учетную запись и сразу открывает сессию
func (s *Service) Register(ctx context.Context, email, password string, info ClientInfo) (*Session, error) {
	if err := validation.ValidateCredentials(email, password); err != nil {
		s.metrics.ObserveLogin(flowRegister, metrics.ResultFailure)
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		RegisteredIP: info.IP,
		RegisteredAt: now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		s.metrics.ObserveLogin(flowRegister, metrics.ResultFailure)
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("ip", info.IP),
	)

	session, err := s.openSession(ctx, user, info)
	if err != nil {
		s.metrics.ObserveLogin(flowRegister, metrics.ResultFailure)
		return nil, err
	}

	s.metrics.ObserveLogin(flowRegister, metrics.ResultSuccess)
	s.events.Record(ctx, models.EventRegister, user.ID, info.IP, info.UserAgent)

	return session, nil
}

// Login проверяет учетные данные и открывает сессию
func (s *Service) Login(ctx context.Context, email, password string, info ClientInfo) (*Session, error) {
	user, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		s.loginFailed(ctx, flowLogin, info, err)
		return nil, err
	}

	return s.completeLogin(ctx, user, info, flowLogin, models.EventLogin)
}

// AdminLogin как Login, но дополнительно требует флаг администратора
func (s *Service) AdminLogin(ctx context.Context, email, password string, info ClientInfo) (*Session, error) {
	user, err := s.verifier.VerifyAdmin(ctx, email, password)
	if err != nil {
		s.loginFailed(ctx, flowAdminLogin, info, err)
		return nil, err
	}

	return s.completeLogin(ctx, user, info, flowAdminLogin, models.EventAdminLogin)
}

// Refresh выполняет ротацию refresh токена
func (s *Service) Refresh(ctx context.Context, rawRefresh string, info ClientInfo) (*Session, error) {
	return s.rotator.Rotate(ctx, rawRefresh, info)
}

// Logout отзывает все записи журнала пользователя и его токены сессии
func (s *Service) Logout(ctx context.Context, userID string, info ClientInfo) error {
	n, err := s.ledger.RevokeUserTokens(ctx, userID)
	if err != nil {
		s.metrics.ObserveLedgerFailure("revoke_all")
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}

	if s.revoker != nil {
		if err := s.revoker.RevokeUserSessions(ctx, userID, s.now()); err != nil {
			s.logger.WarnContext(ctx, "Failed to revoke user sessions",
				slog.String("user_id", userID),
				slog.Any("error", err),
			)
		}
	}

	s.logger.InfoContext(ctx, "User logged out",
		slog.String("user_id", userID),
		slog.Int("revoked_tokens", n),
	)
	s.metrics.ObserveLogout()
	s.events.Record(ctx, models.EventLogout, userID, info.IP, info.UserAgent)

	return nil
}

// Authenticate проверяет токен сессии и возвращает актуальное состояние пользователя
func (s *Service) Authenticate(ctx context.Context, rawSession string) (*models.User, error) {
	claims, err := s.issuer.ParseSession(rawSession)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	if s.revoker != nil && claims.IssuedAt != nil {
		revoked, err := s.revoker.IsRevoked(ctx, user.ID, claims.IssuedAt.Time)
		if err != nil {
			// Denylist недоступен: журнал refresh токенов остается основной защитой
			s.logger.WarnContext(ctx, "Revocation check failed",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		} else if revoked {
			return nil, fmt.Errorf("%w: session revoked", ErrInvalidToken)
		}
	}

	return user, nil
}

// EnsureAdmin создает администратора или повышает существующего пользователя
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsAdmin {
			if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
				return nil, fmt.Errorf("failed to promote user: %w", err)
			}
			user.IsAdmin = true
			s.logger.InfoContext(ctx, "Existing user promoted to admin", slog.String("user_id", user.ID))
		}
		return user, nil
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := validation.ValidateCredentials(email, password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user = &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	s.logger.InfoContext(ctx, "Admin user created", slog.String("user_id", user.ID))
	return user, nil
}

func (s *Service) completeLogin(ctx context.Context, user *models.User, info ClientInfo, flow string, event models.AuthEventType) (*Session, error) {
	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now(), info.IP); err != nil {
		s.logger.WarnContext(ctx, "Failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	session, err := s.openSession(ctx, user, info)
	if err != nil {
		s.metrics.ObserveLogin(flow, metrics.ResultFailure)
		return nil, err
	}

	s.logger.InfoContext(ctx, "User logged in",
		slog.String("user_id", user.ID),
		slog.String("flow", flow),
	)
	s.metrics.ObserveLogin(flow, metrics.ResultSuccess)
	s.events.Record(ctx, event, user.ID, info.IP, info.UserAgent)

	return session, nil
}

// openSession выдает пару токенов и создает запись журнала (начало цепочки)
func (s *Service) openSession(ctx context.Context, user *models.User, info ClientInfo) (*Session, error) {
	pair, err := s.issuer.Issue(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	record := newLedgerRecord(user.ID, pair, info, s.now())
	if err := s.ledger.CreateRefreshToken(ctx, record); err != nil {
		s.metrics.ObserveLedgerFailure("create")
		if s.opts.LedgerFailurePolicy != LedgerLenient {
			return nil, fmt.Errorf("failed to persist refresh token: %w", err)
		}
		s.logger.WarnContext(ctx, "Refresh token not persisted, session cannot be renewed",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	return &Session{User: user, Tokens: pair}, nil
}

func (s *Service) loginFailed(ctx context.Context, flow string, info ClientInfo, err error) {
	s.metrics.ObserveLogin(flow, metrics.ResultFailure)

	if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrAccessDenied) {
		s.logger.InfoContext(ctx, "Login rejected",
			slog.String("flow", flow),
			slog.String("ip", info.IP),
			slog.String("reason", err.Error()),
		)
		s.events.Record(ctx, models.EventLoginFailed, "", info.IP, info.UserAgent)
		return
	}

	s.logger.ErrorContext(ctx, "Login failed", slog.String("flow", flow), slog.Any("error", err))
}
