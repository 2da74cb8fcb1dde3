package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spacesedan/sentimen/config"
	"github.com/spacesedan/sentimen/internal/app"
	"github.com/spacesedan/sentimen/internal/clients/kafka_client"
	"github.com/spacesedan/sentimen/internal/consumers"
	"github.com/spacesedan/sentimen/internal/logging"
	"github.com/spacesedan/sentimen/internal/monitoring"
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

	kafkaCfg := kafka_client.GetKafkaConfig()

	var producer *kafka_client.Producer
	for {
		producer, err = kafka_client.NewProducer(ctx, kafkaCfg)
		if err == nil {
			break
		}
		slog.Warn("[Main] Kafka init failed, retrying...", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
	defer producer.Close()

	consumerHealthy := &atomic.Bool{}
	artifactsHealthy := &atomic.Bool{}
	go monitoring.MonitorHealth(ctx, "artifacts", a.Service.Ready, artifactsHealthy)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: healthMux(consumerHealthy, artifactsHealthy),
	}
	go func() {
		slog.Info("[Main] Serving health and metrics", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] Health server error", slog.String("error", err.Error()))
		}
	}()

	kafka_client.RegisterConsumer(kafkaCfg.Topic, consumers.Handler(a.Service, producer, consumers.ReviewConsumerOptions{
		ResultsTopic: kafkaCfg.ResultsTopic,
		Healthy:      consumerHealthy,
	}))

	if err := kafka_client.StartConsumer(ctx, kafkaCfg); err != nil {
		slog.Error("[Main] Consumer stopped", slog.String("error", err.Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Main] Health server shutdown error", slog.String("error", err.Error()))
	}
}

func healthMux(consumer, artifacts *atomic.Bool) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		if !consumer.Load() || !artifacts.Load() {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]bool{
			"consumer":  consumer.Load(),
			"artifacts": artifacts.Load(),
		})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}
