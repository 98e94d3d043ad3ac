package ports

import (
	"context"
	"io"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
)

// EventIngestor is the inbound contract for source-specific event intake.
type EventIngestor interface {
	IngestGmail(ctx context.Context, msg domain.GmailMessage) (*domain.InteractionEvent, error)
	IngestZoom(ctx context.Context, meeting domain.ZoomMeeting) (*domain.InteractionEvent, error)
	IngestWhatsApp(ctx context.Context, msg domain.WhatsAppMessage) (*domain.InteractionEvent, error)
	IngestCalendar(ctx context.Context, event domain.CalendarEvent) (*domain.InteractionEvent, error)
	IngestWebhook(ctx context.Context, event domain.InteractionEvent) (*domain.InteractionEvent, error)
}

// EventPreprocessor is the inbound contract for event normalization.
type EventPreprocessor interface {
	Preprocess(ctx context.Context, event domain.InteractionEvent) (*domain.ProcessedEvent, error)
}

// ExtractionEngine is the inbound contract for structured extraction. It
// never fails: degraded inputs produce a low-confidence fallback result.
type ExtractionEngine interface {
	Extract(ctx context.Context, event domain.ProcessedEvent) domain.ExtractionResult
}

// EventProcessor is the inbound contract for the full parse pipeline.
type EventProcessor interface {
	Process(ctx context.Context, event domain.InteractionEvent) (*domain.ParseOutcome, error)
}

// InteractionReader is the inbound read model for stored interactions.
type InteractionReader interface {
	GetByID(ctx context.Context, id string) (*domain.InteractionRecord, error)
}

// AgentService is the inbound contract for warehouse-grounded chat.
type AgentService interface {
	Chat(ctx context.Context, req domain.AgentChatRequest) (*domain.AgentRunResult, error)
}

// InsightsService is the inbound read model for aggregated CRM views.
type InsightsService interface {
	CustomerSummary(ctx context.Context, companyName string) (*domain.CustomerSummary, error)
	DueFollowUps(ctx context.Context, by time.Time, limit int) ([]domain.InteractionRecord, error)
}

// ReportService is the inbound contract for report generation.
type ReportService interface {
	WritePipelineReport(ctx context.Context, w io.Writer) error
}
