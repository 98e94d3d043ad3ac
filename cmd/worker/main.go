package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardmere/crmparse/internal/bootstrap"
	"github.com/ardmere/crmparse/internal/config"
	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/observability/logging"
	"github.com/ardmere/crmparse/internal/observability/metrics"
)

const service = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("crmparse", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_server_error", "error", err)
		}
	}()

	eventTimeout := time.Duration(cfg.WorkerEventTimeoutSeconds) * time.Second
	if eventTimeout <= 0 {
		eventTimeout = 30 * time.Second
	}

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "dlq_subject", cfg.NATSDLQSubject)
	err = app.Queue.SubscribeInteractions(ctx, func(handlerCtx context.Context, event domain.InteractionEvent) error {
		workerMetrics.StartEvent()
		start := time.Now()
		if event.OccurredAt != nil {
			workerMetrics.ObserveEventAge(service, time.Since(*event.OccurredAt))
		}

		processCtx, cancel := context.WithTimeout(handlerCtx, eventTimeout)
		defer cancel()

		_, processErr := app.ProcessUC.Process(processCtx, event)
		workerMetrics.FinishEvent(service, time.Since(start), processErr)
		if processErr == nil {
			return nil
		}

		letter := domain.DeadLetter{
			Event:    event,
			Error:    processErr.Error(),
			FailedAt: time.Now().UTC(),
		}
		if dlqErr := app.Queue.PublishDeadLetter(handlerCtx, letter); dlqErr != nil {
			slog.Error("dead_letter_publish_failed", "event_id", event.ID, "error", dlqErr)
		} else {
			workerMetrics.RecordDeadLetter(service)
		}
		return processErr
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker_metrics_shutdown_error", "error", err)
	}
}
