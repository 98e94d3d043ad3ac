package main

import (
	"context"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/ardmere/crmparse/internal/adapters/http"
	"github.com/ardmere/crmparse/internal/bootstrap"
	"github.com/ardmere/crmparse/internal/config"
	"github.com/ardmere/crmparse/internal/observability/logging"
	"github.com/ardmere/crmparse/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("crmparse", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpadapter.ValidateOpenAPIContract(); err != nil {
		log.Fatalf("openapi contract error: %v", err)
	}

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		cfg,
		app.IngestUC,
		app.PreprocessUC,
		app.ExtractUC,
		app.ProcessUC,
		app.ReadUC,
		app.AgentUC,
		app.ReportUC,
		httpMetrics,
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		log.Fatalf("api listen error: %v", err)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_error", "error", err)
	}
}
