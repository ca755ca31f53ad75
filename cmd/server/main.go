package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/iudanet/leadsauth/internal/crypto"
	"github.com/iudanet/leadsauth/internal/server/audit"
	"github.com/iudanet/leadsauth/internal/server/auth"
	"github.com/iudanet/leadsauth/internal/server/config"
	"github.com/iudanet/leadsauth/internal/server/handlers"
	"github.com/iudanet/leadsauth/internal/server/jwt"
	"github.com/iudanet/leadsauth/internal/server/metrics"
	"github.com/iudanet/leadsauth/internal/server/revocation"
	"github.com/iudanet/leadsauth/internal/server/router"
	"github.com/iudanet/leadsauth/internal/server/storage/sqlite"
	"github.com/iudanet/leadsauth/internal/server/telemetry"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	envFile := flag.String("env", ".env", "Path to .env file (optional)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, "leadsauth", Version, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown tracing", slog.Any("error", err))
		}
	}()

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", slog.Any("error", err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		SessionTTL: cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	var publisher audit.Publisher
	if cfg.NATSURL != "" {
		nc, err := audit.NewNATSPublisher(cfg.NATSURL, audit.DefaultSubjectPrefix)
		if err != nil {
			return err
		}
		defer nc.Close()
		publisher = nc
		logger.InfoContext(ctx, "Auth events published to NATS", slog.String("url", cfg.NATSURL))
	}

	checks := map[string]handlers.Pinger{"database": store}
	serviceOpts := []auth.Option{
		auth.WithMetrics(m),
		auth.WithEvents(audit.NewRecorder(logger, store, publisher)),
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = rdb.Close() }()

		denylist := revocation.NewRedisDenylist(rdb, cfg.RevocationTTL)
		if err := denylist.Ping(ctx); err != nil {
			// Denylist необязателен: сервис стартует, проверка отзыва деградирует
			logger.WarnContext(ctx, "Redis unavailable at startup", slog.Any("error", err))
		}
		serviceOpts = append(serviceOpts, auth.WithRevoker(denylist))
		checks["redis"] = denylist
	}

	service, err := auth.NewService(logger, store, store, issuer, crypto.NewPasswordHasher(crypto.DefaultPasswordParams()), cfg.AuthOptions(), serviceOpts...)
	if err != nil {
		return fmt.Errorf("failed to create auth service: %w", err)
	}

	if cfg.AdminEmail != "" {
		admin, err := service.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		logger.InfoContext(ctx, "Admin account ready", slog.String("user_id", admin.ID))
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: router.New(router.Options{
			Logger:   logger,
			Auth:     service,
			Events:   store,
			Metrics:  m,
			Gatherer: reg,
			Health:   checks,
			Version:  Version,
			Cookies: handlers.CookieConfig{
				Domain: cfg.CookieDomain,
				Secure: cfg.CookieSecure,
			},
			AllowedOrigins:     cfg.AllowedOrigins,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
			Tracing:            cfg.OTLPEndpoint != "",
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "Server starting",
			slog.String("addr", cfg.Addr),
			slog.String("version", Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func printVersion() {
	fmt.Printf("leadsauth server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
