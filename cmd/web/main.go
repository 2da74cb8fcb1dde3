package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacesedan/sentimen/config"
	"github.com/spacesedan/sentimen/internal/app"
	"github.com/spacesedan/sentimen/internal/logging"
	"github.com/spacesedan/sentimen/internal/web"
)

func main() {
	config.LoadEnv(config.Env())
	cfg, err := config.Load()
	if err != nil {
		slog.Error("[Main] Invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logging.InitLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		slog.Error("[Main] Failed to build review service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	// Load artifacts up front so a broken deployment shows in the logs
	// immediately. The server still starts and reports the failure.
	if err := a.Service.Ready(ctx); err != nil {
		slog.Error("[Main] Model artifacts are not available", slog.String("error", err.Error()))
	}

	srv, err := web.NewServer(a.Service, web.Options{
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Metrics:   a.Metrics,
	})
	if err != nil {
		slog.Error("[Main] Failed to create web server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("[Main] Starting web server", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Server error", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("[Main] Shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Main] Server shutdown error", slog.String("error", err.Error()))
	}
	slog.Info("[Main] Server stopped")
}
