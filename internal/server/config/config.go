// Package config loads server settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/iudanet/leadsauth/internal/server/auth"
)

// MinSecretLen минимальная длина ключа подписи HS256
const MinSecretLen = 32

// Config настройки сервера
type Config struct {
	Addr               string        `env:"ADDR,default=:8080"`
	DBPath             string        `env:"DB_PATH,default=leadsauth.db"`
	JWTSecret          string        `env:"JWT_SECRET,required"`
	JWTIssuer          string        `env:"JWT_ISSUER,default=leadsauth"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL,default=168h"`
	CookieSecure       bool          `env:"COOKIE_SECURE,default=false"`
	CookieDomain       string        `env:"COOKIE_DOMAIN"`
	LedgerPolicy       string        `env:"LEDGER_FAILURE_POLICY,default=strict"`
	ReuseRevokesChain  bool          `env:"REUSE_REVOKES_CHAIN,default=true"`
	ReuseGracePeriod   time.Duration `env:"REUSE_GRACE_PERIOD,default=5s"`
	RotationTimeout    time.Duration `env:"ROTATION_TIMEOUT,default=10s"`
	AllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:4200"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE,default=100"`
	LogLevel           string        `env:"LOG_LEVEL,default=info"`
	LogFormat          string        `env:"LOG_FORMAT,default=json"`
	OTLPEndpoint       string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	RevocationTTL      time.Duration `env:"REVOCATION_TTL"`
	NATSURL            string        `env:"NATS_URL"`
	AdminEmail         string        `env:"ADMIN_EMAIL"`
	AdminPassword      string        `env:"ADMIN_PASSWORD"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

// Load читает .env (если есть) и переменные окружения
func Load(ctx context.Context, envFiles ...string) (*Config, error) {
	// Отсутствующий .env не ошибка
	_ = godotenv.Load(envFiles...)
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith заполняет Config из произвольного источника (используется в тестах)
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if cfg.RevocationTTL <= 0 {
		cfg.RevocationTTL = cfg.AccessTokenTTL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < MinSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretLen))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL"))
	}
	switch auth.LedgerFailurePolicy(c.LedgerPolicy) {
	case auth.LedgerStrict, auth.LedgerLenient:
	default:
		errs = append(errs, fmt.Errorf("LEDGER_FAILURE_POLICY must be %q or %q", auth.LedgerStrict, auth.LedgerLenient))
	}
	if c.ReuseGracePeriod < 0 {
		errs = append(errs, errors.New("REUSE_GRACE_PERIOD must not be negative"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.LogFormat); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// AuthOptions переводит настройки в параметры сервиса аутентификации
func (c *Config) AuthOptions() auth.Options {
	return auth.Options{
		LedgerFailurePolicy: auth.LedgerFailurePolicy(c.LedgerPolicy),
		ReuseRevokesChain:   c.ReuseRevokesChain,
		RotationTimeout:     c.RotationTimeout,
		ReuseGracePeriod:    c.ReuseGracePeriod,
	}
}

// NewLogger создает slog.Logger по LOG_LEVEL и LOG_FORMAT
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.ToLower(c.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
