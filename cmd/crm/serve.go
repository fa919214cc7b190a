package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"crm/internal/adapters/cache"
	"crm/internal/adapters/email"
	web "crm/internal/adapters/http"
	"crm/internal/adapters/http/middleware"
	"crm/internal/adapters/http/perf"
	"crm/internal/adapters/storage"
	"crm/internal/application/orchestrators"
	"crm/internal/config"
	"crm/internal/domain/outbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the outbox worker",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer db.Close()
		v, err := storage.SchemaVersion(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
		return nil
	},
}

// openDB connects and migrates the configured database.
func openDB(ctx context.Context, cfg *config.Config, collector *perf.Collector) (*storage.TimedDB, error) {
	db, err := storage.Open(ctx, storage.Options{
		Driver:         cfg.Database.Driver,
		DSN:            cfg.Database.DSN,
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SlowQueryMs:    cfg.Database.SlowQueryMs,
	}, collector)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.MigrateDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// closingCache is a cache backend that holds a connection or a sweeper goroutine.
type closingCache interface {
	cache.Cache
	Close() error
}

// newCache returns Redis when configured, otherwise a process-local cache.
func newCache(ctx context.Context, cfg *config.Config) (closingCache, error) {
	if cfg.Redis.Addr == "" {
		slog.Info("cache_configured", "backend", "memory")
		return cache.NewMemory(time.Minute), nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   "crm:",
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	slog.Info("cache_configured", "backend", "redis", "addr", cfg.Redis.Addr)
	return r, nil
}

func newEmailSender(cfg *config.Config) email.Sender {
	if cfg.Email.ResendKey != "" {
		slog.Info("email_configured", "provider", "resend")
		return email.NewResendSender(cfg.Email.ResendKey, cfg.Email.From, cfg.Email.ReplyTo)
	}
	if cfg.IsProduction() {
		slog.Warn("email_disabled", "detail", "CRM_RESEND_KEY is not set; emails are logged and dropped")
	}
	return email.NewNoopSender()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := perf.NewCollector(perf.DefaultRingSize)
	db, err := openDB(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var csrfKey []byte
	if cfg.Server.CSRFKey != "" {
		csrfKey, _ = hex.DecodeString(cfg.Server.CSRFKey) // checked by Validate
	}
	var tokens *middleware.TokenIssuer
	if cfg.Auth.JWTSecret != "" {
		tokens = middleware.NewTokenIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	} else {
		slog.Warn("bearer_tokens_disabled", "detail", "CRM_JWT_SECRET is not set")
	}

	sender := newEmailSender(cfg)
	stores := web.NewSQLStores(db)
	handler, stopMux := web.NewMux(stores, collector, web.Options{
		CSRFKey:            csrfKey,
		Secure:             cfg.IsProduction(),
		TrustedOrigins:     cfg.Server.TrustedOrigins,
		RateLimitPerSecond: cfg.Server.RateLimitPerSecond,
		SlowRequestMs:      cfg.Server.SlowRequestMs,
		SessionTTL:         cfg.Auth.SessionTTL,
		Tokens:             tokens,
		Cache:              cache.NewLoader(c),
		LeaderboardTTL:     cfg.Redis.LeaderboardTTL,
		DashboardTTL:       cfg.Redis.DashboardTTL,
		UploadMaxBytes:     cfg.Upload.MaxBytes,
		UploadMaxRows:      cfg.Upload.MaxRows,
		BaseURL:            cfg.Server.BaseURL,
		OTPTTL:             cfg.Auth.OTPTTL,
		OTPMaxAttempts:     cfg.Auth.OTPMaxAttempts,
		EmailSender:        sender,
	})
	defer stopMux()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	processor := orchestrators.NewOutboxProcessor(stores.OutboxStore, map[string]orchestrators.ActionExecutor{
		outbox.ActionTypeEmail: &orchestrators.EmailExecutor{Sender: sender},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server_starting", "version", version, "addr", cfg.Server.Addr, "env", cfg.Server.Env,
			"driver", cfg.Database.Driver, "schema", storage.LatestSchemaVersion())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return processor.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("server_stopping", "timeout", cfg.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
