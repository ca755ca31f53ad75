package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/audit"
	"github.com/iudanet/leadsauth/internal/server/jwt"
	"github.com/iudanet/leadsauth/internal/server/metrics"
	"github.com/iudanet/leadsauth/internal/server/storage"
)

// RotationResult результат успешной ротации
type RotationResult = Session

// Rotator проверяет refresh токен по журналу, отзывает его и выдает новую пару
type Rotator struct {
	logger            *slog.Logger
	users             storage.UserStorage
	ledger            storage.TokenStorage
	issuer            *jwt.Issuer
	events            *audit.Recorder
	metrics           *metrics.Metrics
	revoker           SessionRevoker
	now               func() time.Time
	timeout           time.Duration
	reuseGrace        time.Duration
	reuseRevokesChain bool
}

// Rotate выполняет ротацию. Любой отказ возвращается как ErrInvalidToken.
// Ротация не прерывается отменой запроса, ограничена только собственным таймаутом.
func (r *Rotator) Rotate(ctx context.Context, raw string, info ClientInfo) (*RotationResult, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	result, err := r.rotate(ctx, raw, info)
	if err != nil {
		r.observeFailure(ctx, err)
		return nil, ErrInvalidToken
	}

	r.metrics.ObserveRefresh(metrics.ResultSuccess)
	r.events.Record(ctx, models.EventRefresh, result.User.ID, info.IP, info.UserAgent)

	return result, nil
}

func (r *Rotator) rotate(ctx context.Context, raw string, info ClientInfo) (*RotationResult, error) {
	claims, err := r.issuer.ParseRefresh(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	user, err := r.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	candidates, err := r.ledger.GetActiveUserTokens(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger records: %w", err)
	}

	now := r.now()
	var matched *models.RefreshToken
	for _, c := range candidates {
		if jwt.MatchRefreshToken(raw, c.TokenHash) && !c.IsExpired(now) {
			matched = c
			break
		}
	}

	if matched == nil {
		return nil, r.classifyMiss(ctx, raw, user, info)
	}

	// Флаг администратора берется из текущего состояния, а не из claims
	pair, err := r.issuer.Issue(user.ID, user.Email, user.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	next := newLedgerRecord(user.ID, pair, info, now)
	if err := r.ledger.RotateRefreshToken(ctx, matched.ID, next); err != nil {
		if errors.Is(err, storage.ErrTokenAlreadyRotated) {
			return nil, errRace
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return &RotationResult{User: user, Tokens: pair}, nil
}

// classifyMiss различает неизвестный токен, проигранную гонку и повторное
// предъявление уже замененного токена
func (r *Rotator) classifyMiss(ctx context.Context, raw string, user *models.User, info ClientInfo) error {
	record, err := r.ledger.GetRefreshTokenByHash(ctx, jwt.HashRefreshToken(raw))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return errNoMatch
		}
		return fmt.Errorf("failed to look up presented token: %w", err)
	}

	if record.UserID != user.ID || !record.IsRotated() {
		return errNoMatch
	}

	if r.now().Sub(record.UpdatedAt) < r.reuseGrace {
		return errRace
	}

	r.logger.WarnContext(ctx, "Refresh token reuse detected",
		slog.String("user_id", user.ID),
		slog.String("record_id", record.ID),
		slog.String("ip", info.IP),
	)
	r.events.Record(ctx, models.EventRefreshReuse, user.ID, info.IP, info.UserAgent)

	if r.reuseRevokesChain {
		n, err := r.ledger.RevokeTokenChain(ctx, record.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to revoke token chain",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
		} else {
			r.logger.InfoContext(ctx, "Token chain revoked",
				slog.String("user_id", user.ID),
				slog.Int("revoked", n),
			)
		}

		if r.revoker != nil {
			if err := r.revoker.RevokeUserSessions(ctx, user.ID, r.now()); err != nil {
				r.logger.WarnContext(ctx, "Failed to revoke user sessions",
					slog.String("user_id", user.ID),
					slog.Any("error", err),
				)
			}
		}
	}

	return errReuse
}

func (r *Rotator) observeFailure(ctx context.Context, err error) {
	switch {
	case errors.Is(err, errReuse):
		r.metrics.ObserveRefresh(metrics.ResultReuse)
	case errors.Is(err, errRace):
		r.metrics.ObserveRefresh(metrics.ResultRace)
		r.logger.InfoContext(ctx, "Refresh rejected: concurrent rotation")
	case errors.Is(err, ErrInvalidToken), errors.Is(err, errNoMatch), errors.Is(err, storage.ErrUserNotFound):
		r.metrics.ObserveRefresh(metrics.ResultFailure)
		r.logger.InfoContext(ctx, "Refresh rejected", slog.Any("error", err))
	default:
		r.metrics.ObserveRefresh(metrics.ResultFailure)
		r.logger.ErrorContext(ctx, "Refresh failed", slog.Any("error", err))
	}
}

func newLedgerRecord(userID string, pair *jwt.TokenPair, info ClientInfo, now time.Time) *models.RefreshToken {
	return &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		TokenHash: jwt.HashRefreshToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
		IP:        info.IP,
		UserAgent: info.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
