package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/ardmere/crmparse/internal/bootstrap"
	"github.com/ardmere/crmparse/internal/config"
	crmmcp "github.com/ardmere/crmparse/internal/mcp"
	"github.com/ardmere/crmparse/internal/observability/logging"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	cfg := config.Load()
	// Stdout carries the JSON-RPC stream, so logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "crmparse", cfg.LogLevel))

	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	srv := crmmcp.NewServer(crmmcp.ServerConfig{
		Catalog:       app.Catalog,
		Insights:      app.InsightsUC,
		QueryRowLimit: cfg.AgentQueryRowLimit,
	})

	slog.Info("mcp_serving", "transport", "stdio")
	if err := server.ServeStdio(srv); err != nil {
		log.Fatalf("mcp serve error: %v", err)
	}
}
