// Package entrypoint assembles the console and runs the HTTP server.
package entrypoint

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/smolnikov/adminpanel/internal/audit"
	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/config"
	"github.com/smolnikov/adminpanel/internal/crypto"
	"github.com/smolnikov/adminpanel/internal/guard"
	httpui "github.com/smolnikov/adminpanel/internal/http"
	"github.com/smolnikov/adminpanel/internal/metrics"
	"github.com/smolnikov/adminpanel/internal/scheduler"
	"github.com/smolnikov/adminpanel/internal/session"
	"github.com/smolnikov/adminpanel/internal/state"
	"github.com/smolnikov/adminpanel/internal/tokenstore"
)

const initializeTimeout = 30 * time.Second

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, logger *slog.Logger, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		logger.Info("starting server", "host", cfg.HTTP.Host, "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down", "timeout", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server shutdown:", err)
	}

	logger.Info("server exiting")
}

// Run wires the whole console together and serves it.
func Run(cfg *config.Config, version string) {
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting admin console", "version", version)

	db, err := state.Open(cfg.State.Path)
	if err != nil {
		log.Fatalf("failed to open state database: %v", err)
	}

	store, err := tokenstore.New(db.Gorm, tokenstore.Config{
		EncryptionKey: cfg.State.EncryptionKey,
		Passphrase:    cfg.State.Passphrase,
		KeyFilePath:   cfg.State.KeyFilePath,
	})
	if err != nil {
		log.Fatalf("failed to set up token store: %v", err)
	}

	auditRepo, err := audit.NewRepository(db.Gorm, logger)
	if err != nil {
		log.Fatalf("failed to set up audit trail: %v", err)
	}

	sqlDB, err := db.SQL()
	if err != nil {
		log.Fatalf("failed to access state database: %v", err)
	}
	sessions, err := guard.NewSessionManager(sqlDB, cfg.Session.Lifetime, cfg.Session.SecureCookies)
	if err != nil {
		log.Fatalf("failed to set up browser sessions: %v", err)
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	api := backend.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	manager := session.NewManager(store, api,
		session.WithNotifier(guard.FlashNotifier{Sessions: sessions}),
		session.WithAuditor(auditRepo),
		session.WithMetrics(collector),
		session.WithLogger(logger),
	)

	// Verify the stored token in the background; the guard holds protected
	// pages on a waiting screen until this settles.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), initializeTimeout)
		defer cancel()
		manager.Initialize(ctx)
	}()

	csrfSecret, err := resolveCSRFSecret(cfg.Session.CSRFSecret, logger)
	if err != nil {
		log.Fatalf("failed to set up CSRF protection: %v", err)
	}

	limiter := rate.NewLimiter(
		rate.Limit(float64(cfg.Session.LoginRatePerMinute)/60.0),
		cfg.Session.LoginBurst,
	)

	router := httpui.NewRouter(httpui.RouterConfig{
		Session:         manager,
		Backend:         api,
		Audit:           auditRepo,
		Sessions:        sessions,
		Guard:           guard.New(manager),
		Database:        db,
		Notifier:        guard.FlashNotifier{Sessions: sessions},
		TemplatesPath:   cfg.UI.TemplatesPath,
		StaticPath:      cfg.UI.StaticPath,
		CSRFSecret:      csrfSecret,
		SecureCookies:   cfg.Session.SecureCookies,
		Version:         version,
		LoginLimiter:    limiter,
		MetricsRegistry: registry,
	})

	var reverifier *scheduler.Reverifier
	if cfg.Reverify.Enabled {
		reverifier = scheduler.NewReverifier(manager, cfg.Reverify.Schedule, logger)
		if err := reverifier.Start(); err != nil {
			log.Fatalf("failed to start token re-verification: %v", err)
		}
	}

	Serve(router, cfg, logger, func(ctx context.Context) {
		if reverifier != nil {
			reverifier.Stop()
		}
		if err := db.Close(); err != nil {
			logger.Error("failed to close state database", "error", err)
		}
	})
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveCSRFSecret decodes the configured secret, or generates an
// ephemeral one. A generated secret invalidates in-flight forms on
// restart, so a fixed one is preferred in production.
func resolveCSRFSecret(configured string, logger *slog.Logger) ([]byte, error) {
	if configured != "" {
		secret, err := base64.StdEncoding.DecodeString(configured)
		if err != nil {
			return nil, fmt.Errorf("failed to decode CSRF secret: %w", err)
		}
		return secret, nil
	}

	logger.Warn("no CSRF secret configured, generating an ephemeral one")
	encoded, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}
