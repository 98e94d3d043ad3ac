package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/ardmere/crmparse/internal/config"
	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
	"github.com/ardmere/crmparse/internal/core/usecase"
	"github.com/ardmere/crmparse/internal/infrastructure/extractor"
	neo4jgraph "github.com/ardmere/crmparse/internal/infrastructure/graph/neo4j"
	"github.com/ardmere/crmparse/internal/infrastructure/llm/openaichat"
	"github.com/ardmere/crmparse/internal/infrastructure/queue/nats"
	"github.com/ardmere/crmparse/internal/infrastructure/report/excel"
	"github.com/ardmere/crmparse/internal/infrastructure/repository/postgres"
	"github.com/ardmere/crmparse/internal/infrastructure/resilience"
	"github.com/ardmere/crmparse/internal/infrastructure/storage/localfs"
	"github.com/ardmere/crmparse/internal/infrastructure/transcribe/whisper"
)

type App struct {
	Config config.Config

	Queue   ports.EventQueue
	Catalog ports.WarehouseCatalog

	IngestUC     ports.EventIngestor
	PreprocessUC ports.EventPreprocessor
	ExtractUC    ports.ExtractionEngine
	ProcessUC    ports.EventProcessor
	ReadUC       ports.InteractionReader
	InsightsUC   ports.InsightsService
	AgentUC      ports.AgentService
	ReportUC     ports.ReportService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	contacts := postgres.NewContactRepository(db)
	companies := postgres.NewCompanyRepository(db)
	interactions := postgres.NewInteractionRepository(db)
	deals := postgres.NewDealRepository(db)
	conversations := postgres.NewConversationRepository(db)
	catalog := postgres.NewCatalog(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, cfg.NATSDLQSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	model := openaichat.NewWithOptions(cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenAIAPIKey, openaichat.Options{
		RequestsPerMinute:  cfg.OpenAIRPM,
		ResilienceExecutor: executor,
	})
	transcriber := whisper.New(cfg.WhisperBaseURL, cfg.WhisperModel, cfg.WhisperAPIKey, storage)

	// The graph projection is optional; an empty URI leaves it off.
	var graph ports.GraphProjector
	var projector *neo4jgraph.Projector
	if cfg.Neo4jURI != "" {
		projector, err = neo4jgraph.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, fmt.Errorf("init graph projector: %w", err)
		}
		graph = projector
	}

	attachments := extractor.NewMulti()

	preprocessUC := usecase.NewPreprocessUseCase(transcriber)
	extractUC := usecase.NewExtractUseCase(model)
	saveUC := usecase.NewSaveInteractionUseCase(contacts, companies, interactions, deals, graph)
	processUC := usecase.NewProcessEventUseCase(preprocessUC, extractUC, saveUC)
	readUC := usecase.NewReadInteractionUseCase(interactions)
	ingestUC := usecase.NewIngestEventUseCase(attachments, storage, queue)
	insightsUC := usecase.NewInsightsUseCase(contacts, companies, interactions, deals)
	reportUC := usecase.NewReportUseCase(contacts, interactions, deals, excel.NewWriter())
	agentUC := usecase.NewAgentChatUseCase(model, catalog, insightsUC, conversations, domain.AgentLimits{
		MaxIterations:   cfg.AgentMaxIterations,
		Timeout:         time.Duration(cfg.AgentTimeoutSeconds) * time.Second,
		HistoryMessages: cfg.AgentHistoryMessages,
		QueryRowLimit:   cfg.AgentQueryRowLimit,
	})

	return &App{
		Config: cfg,

		Queue:   queue,
		Catalog: catalog,

		IngestUC:     ingestUC,
		PreprocessUC: preprocessUC,
		ExtractUC:    extractUC,
		ProcessUC:    processUC,
		ReadUC:       readUC,
		InsightsUC:   insightsUC,
		AgentUC:      agentUC,
		ReportUC:     reportUC,

		closeFn: func() {
			queue.Close()
			if projector != nil {
				_ = projector.Close(context.Background())
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
