package config

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/leadsauth/internal/server/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": testSecret,
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "leadsauth", cfg.JWTIssuer)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "strict", cfg.LedgerPolicy)
	assert.True(t, cfg.ReuseRevokesChain)
	assert.Equal(t, 5*time.Second, cfg.ReuseGracePeriod)
	assert.Equal(t, 10*time.Second, cfg.RotationTimeout)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.AllowedOrigins)
	// Маркер отзыва живет не меньше токена сессии
	assert.Equal(t, cfg.AccessTokenTTL, cfg.RevocationTTL)
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":            testSecret,
		"ACCESS_TOKEN_TTL":      "5m",
		"REFRESH_TOKEN_TTL":     "24h",
		"LEDGER_FAILURE_POLICY": "lenient",
		"REUSE_REVOKES_CHAIN":   "false",
		"REUSE_GRACE_PERIOD":    "0s",
		"COOKIE_SECURE":         "true",
		"COOKIE_DOMAIN":         "example.com",
		"CORS_ALLOWED_ORIGINS":  "https://a.example.com,https://b.example.com",
		"ADMIN_EMAIL":           "admin@example.com",
		"ADMIN_PASSWORD":        "secret123",
	}))
	require.NoError(t, err)

	opts := cfg.AuthOptions()
	assert.Equal(t, auth.LedgerLenient, opts.LedgerFailurePolicy)
	assert.False(t, opts.ReuseRevokesChain)
	assert.Zero(t, opts.ReuseGracePeriod)
	assert.Equal(t, 10*time.Second, opts.RotationTimeout)

	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, "example.com", cfg.CookieDomain)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestLoadWith_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing secret",
			env:     map[string]string{},
			wantErr: "JWT_SECRET",
		},
		{
			name:    "short secret",
			env:     map[string]string{"JWT_SECRET": "short"},
			wantErr: "at least 32 bytes",
		},
		{
			name: "unknown ledger policy",
			env: map[string]string{
				"JWT_SECRET":            testSecret,
				"LEDGER_FAILURE_POLICY": "yolo",
			},
			wantErr: "LEDGER_FAILURE_POLICY",
		},
		{
			name: "refresh shorter than session",
			env: map[string]string{
				"JWT_SECRET":        testSecret,
				"ACCESS_TOKEN_TTL":  "1h",
				"REFRESH_TOKEN_TTL": "30m",
			},
			wantErr: "REFRESH_TOKEN_TTL",
		},
		{
			name: "admin email without password",
			env: map[string]string{
				"JWT_SECRET":  testSecret,
				"ADMIN_EMAIL": "admin@example.com",
			},
			wantErr: "ADMIN_PASSWORD",
		},
		{
			name: "bad log level",
			env: map[string]string{
				"JWT_SECRET": testSecret,
				"LOG_LEVEL":  "loud",
			},
			wantErr: "LOG_LEVEL",
		},
		{
			name: "bad duration",
			env: map[string]string{
				"JWT_SECRET":       testSecret,
				"ACCESS_TOKEN_TTL": "forever",
			},
			wantErr: "invalid duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(tt.env))
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	cfg := &Config{LogLevel: "warn", LogFormat: "text"}
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")

	buf.Reset()
	cfg = &Config{LogLevel: "debug", LogFormat: "json"}
	cfg.NewLogger(&buf).Debug("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}
