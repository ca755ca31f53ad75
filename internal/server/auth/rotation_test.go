package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/leadsauth/internal/models"
	"github.com/iudanet/leadsauth/internal/server/jwt"
	"github.com/iudanet/leadsauth/internal/server/metrics"
)

func noGraceOptions() Options {
	opts := DefaultOptions()
	opts.ReuseGracePeriod = 0
	return opts
}

func TestRotation_Success(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)

	rotated, err := env.service.Refresh(ctx, reg.Tokens.RefreshToken, ClientInfo{IP: "10.0.0.9", UserAgent: "agent-2"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, rotated.User.ID)
	assert.NotEqual(t, reg.Tokens.RefreshToken, rotated.Tokens.RefreshToken)

	all, err := env.store.GetUserTokens(ctx, reg.User.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := make(map[string]*models.RefreshToken)
	for _, tok := range all {
		byID[tok.ID] = tok
	}

	old, err := env.store.GetRefreshTokenByHash(ctx, jwt.HashRefreshToken(reg.Tokens.RefreshToken))
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)

	next := byID[*old.ReplacedBy]
	require.NotNil(t, next)
	assert.False(t, next.Revoked)
	assert.True(t, jwt.MatchRefreshToken(rotated.Tokens.RefreshToken, next.TokenHash))
	assert.Equal(t, "10.0.0.9", next.IP)
	assert.Equal(t, "agent-2", next.UserAgent)

	// Новый токен снова ротируется
	_, err = env.service.Refresh(ctx, rotated.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.RefreshCounter(metrics.ResultSuccess)))
	assert.Equal(t, 2, countEvents(t, env.store, reg.User.ID, models.EventRefresh))
}

func TestRotation_UsesCurrentAdminFlag(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)
	require.NoError(t, env.store.SetAdmin(ctx, reg.User.ID, true))

	rotated, err := env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)

	claims, err := env.service.Issuer().ParseSession(rotated.Tokens.SessionToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.True(t, rotated.User.IsAdmin)
}

func TestRotation_Rejections(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)

	// Подписанный токен без записи в журнале
	unknown, err := env.service.Issuer().Issue(reg.User.ID, reg.User.Email, false)
	require.NoError(t, err)

	// Запись журнала с истекшим сроком при живой подписи
	expired, err := env.service.Issuer().Issue(reg.User.ID, reg.User.Email, false)
	require.NoError(t, err)
	past := time.Now().Add(-time.Minute)
	require.NoError(t, env.store.CreateRefreshToken(ctx, &models.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    reg.User.ID,
		TokenHash: jwt.HashRefreshToken(expired.RefreshToken),
		ExpiresAt: past,
		CreatedAt: past.Add(-time.Hour),
		UpdatedAt: past.Add(-time.Hour),
	}))

	// Токен пользователя, которого больше нет
	ghost, err := env.service.Issuer().Issue(uuid.New().String(), "ghost@example.com", false)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "malformed", token: "not-a-jwt"},
		{name: "empty", token: ""},
		{name: "session token presented", token: reg.Tokens.SessionToken},
		{name: "no ledger record", token: unknown.RefreshToken},
		{name: "expired ledger record", token: expired.RefreshToken},
		{name: "deleted identity", token: ghost.RefreshToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.service.Refresh(ctx, tt.token, testInfo)
			// Причина отказа наружу не раскрывается
			assert.Equal(t, ErrInvalidToken, err)
			assert.Nil(t, result)
		})
	}

	// Исходная сессия не затронута
	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	assert.NoError(t, err)
}

func TestRotation_SecondPresentationFails(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotation_ReuseRevokesChain(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, noGraceOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)
	other, err := env.service.Login(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)

	gen2, err := env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)
	gen3, err := env.service.Refresh(ctx, gen2.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)

	// Повторное предъявление первого поколения
	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Живая голова цепочки отозвана
	_, err = env.service.Refresh(ctx, gen3.Tokens.RefreshToken, testInfo)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Независимая сессия другого устройства жива
	_, err = env.service.Refresh(ctx, other.Tokens.RefreshToken, testInfo)
	assert.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RefreshCounter(metrics.ResultReuse)))
	assert.Equal(t, 1, countEvents(t, env.store, reg.User.ID, models.EventRefreshReuse))
	_, marked := env.revoker.marks[reg.User.ID]
	assert.True(t, marked)
}

func TestRotation_ReuseWithoutChainRevocation(t *testing.T) {
	ctx := context.Background()
	opts := noGraceOptions()
	opts.ReuseRevokesChain = false
	env := setupService(t, opts)

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)
	gen2, err := env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = env.service.Refresh(ctx, gen2.Tokens.RefreshToken, testInfo)
	assert.NoError(t, err)
	assert.Empty(t, env.revoker.marks)
}

func TestRotation_ReplayInsideGraceIsRace(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)
	gen2, err := env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.NoError(t, err)

	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Победитель гонки сохраняет сессию
	_, err = env.service.Refresh(ctx, gen2.Tokens.RefreshToken, testInfo)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.RefreshCounter(metrics.ResultRace)))
}

func TestRotation_Concurrent(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(ctx, "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)

	const callers = 2
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*Session, callers)
		errs    = make([]error, callers)
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
		}(i)
	}
	close(start)
	wg.Wait()

	successes := 0
	var winner *Session
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			successes++
			winner = results[i]
		} else {
			assert.ErrorIs(t, errs[i], ErrInvalidToken)
		}
	}
	require.Equal(t, 1, successes)

	// Ровно одна живая запись, и она принадлежит победителю
	active, err := env.store.GetActiveUserTokens(ctx, reg.User.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, jwt.MatchRefreshToken(winner.Tokens.RefreshToken, active[0].TokenHash))
}

func TestRotation_IgnoresRequestCancellation(t *testing.T) {
	env := setupService(t, DefaultOptions())

	reg, err := env.service.Register(context.Background(), "alice@example.com", "secret123", testInfo)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = env.service.Refresh(ctx, reg.Tokens.RefreshToken, testInfo)
	assert.NoError(t, err)
}
