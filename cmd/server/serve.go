package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/fieldops/internal/config"
	"github.com/h4ks-com/fieldops/internal/database"
	"github.com/h4ks-com/fieldops/internal/observability"
	"github.com/h4ks-com/fieldops/internal/server"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/h4ks-com/fieldops/docs"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// bootstrap loads config, installs the logger and opens the migrated database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.SetDefault(observability.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	db, err := database.Open(database.Options{
		URL:             cfg.Database.URL,
		MaxOpen:         cfg.Database.MaxOpen,
		MaxIdle:         cfg.Database.MaxIdle,
		ConnMaxLifetime: cfg.Database.MaxLifetime,
		Debug:           cfg.Logging.Level == "debug",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return cfg, db, nil
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing.Enabled, cfg.Tracing.ServiceName, version)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	gin.SetMode(cfg.GinMode)

	svc := server.NewServices(db, cfg.JWT.Secret)
	opts := server.Options{
		TestMode: cfg.TestMode,
		Metrics:  cfg.Metrics.Enabled,
		Swagger:  true,
	}
	if cfg.Tracing.Enabled {
		opts.ServiceName = cfg.Tracing.ServiceName
	}
	router := server.NewRouter(db, svc, opts)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go purgeExpiredTokens(ctx, svc)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting fieldops server", "addr", srv.Addr, "version", version)
		if cfg.TestMode {
			slog.Warn("TEST MODE ENABLED - X-Test-Username authentication accepted")
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeExpiredTokens(ctx context.Context, svc *server.Services) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Tokens.PurgeExpired()
			if err != nil {
				slog.Warn("token purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired tokens", "count", n)
			}
		}
	}
}
