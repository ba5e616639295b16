package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/backend/internal/config"
	"github.com/taskhub/backend/internal/db"
	"github.com/taskhub/backend/internal/handler"
	"github.com/taskhub/backend/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	setupLogger(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("database ready", "driver", store.Dialect)

	revoked := service.NewRevocationList(store)
	authService, err := service.NewAuthService(store, revoked, cfg.Auth)
	if err != nil {
		return err
	}

	sweepInterval, _ := cfg.RevocationSweepInterval()
	go revoked.Run(ctx, sweepInterval)

	rps, burst, _ := cfg.AuthRateLimit()
	limiter := handler.NewRateLimiter(rps, burst)
	go limiter.Run(ctx, time.Minute)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handler.NewRouter(handler.RouterConfig{
		Auth:           authService,
		Users:          service.NewUserService(store, authService),
		Projects:       service.NewProjectService(store),
		Tasks:          service.NewTaskService(store),
		DB:             store,
		AuthLimiter:    limiter,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "env", cfg.Server.Env)
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

	timeout, _ := cfg.ShutdownTimeout()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	slog.Info("shutting down", "timeout", timeout)
	return srv.Shutdown(shutdownCtx)
}

func setupLogger(cfg config.Config) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}

	var h slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
