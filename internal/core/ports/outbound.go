package ports

import (
	"context"
	"io"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
)

// ContactRepository persists and reads contact rows. Lookups return
// (nil, nil) when no row matches.
type ContactRepository interface {
	FindByEmail(ctx context.Context, email string) (*domain.ContactRecord, error)
	Insert(ctx context.Context, record domain.ContactRecord) error
	MergeProfile(ctx context.Context, id string, profile domain.ContactProfile, touchedAt time.Time) error
	ListRecent(ctx context.Context, limit int) ([]domain.ContactRecord, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.ContactRecord, error)
}

// CompanyRepository persists and reads company rows. FindByName matches
// case-insensitively and returns (nil, nil) when no row exists.
type CompanyRepository interface {
	FindByName(ctx context.Context, name string) (*domain.CompanyRecord, error)
	Insert(ctx context.Context, record domain.CompanyRecord) error
}

// InteractionRepository persists and reads interaction rows.
type InteractionRepository interface {
	Insert(ctx context.Context, record domain.InteractionRecord) error
	GetByID(ctx context.Context, id string) (*domain.InteractionRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.InteractionRecord, error)
	ListByCompany(ctx context.Context, companyID string, limit int) ([]domain.InteractionRecord, error)
	ListDueFollowUps(ctx context.Context, by time.Time, limit int) ([]domain.InteractionRecord, error)
}

// DealRepository persists and reads deal rows.
type DealRepository interface {
	Insert(ctx context.Context, record domain.DealRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.DealRecord, error)
	ListByCompany(ctx context.Context, companyID string) ([]domain.DealRecord, error)
}

// WarehouseCatalog exposes read-only warehouse introspection for agent
// tooling. Query accepts a single SELECT statement and caps the row count.
type WarehouseCatalog interface {
	Tables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) (*domain.TableSchema, error)
	Query(ctx context.Context, query string, limit int) ([]map[string]any, error)
}

// EventQueue publishes/consumes interaction events.
type EventQueue interface {
	PublishInteraction(ctx context.Context, event domain.InteractionEvent) error
	PublishDeadLetter(ctx context.Context, letter domain.DeadLetter) error
	SubscribeInteractions(ctx context.Context, handler func(context.Context, domain.InteractionEvent) error) error
}

// ChatModel generates LLM completions for extraction and agent planning.
// CompleteJSON asks the model for a JSON-constrained response; callers parse
// the returned text themselves.
type ChatModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Transcriber converts audio referenced by URI into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURI string) (string, error)
}

// ObjectStorage archives raw event payloads and attachments.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// AttachmentExtractor pulls plain text out of binary attachments.
type AttachmentExtractor interface {
	ExtractText(ctx context.Context, filename string, data []byte) (string, error)
}

// GraphProjector mirrors stored interactions into the relationship graph.
type GraphProjector interface {
	ProjectInteraction(ctx context.Context, interaction domain.InteractionRecord, contact *domain.Contact, companyName *string, deal *domain.DealRecord) error
	Close(ctx context.Context) error
}

// ReportWriter renders pipeline reports into downloadable workbooks.
type ReportWriter interface {
	WritePipeline(ctx context.Context, w io.Writer, report domain.PipelineReport) error
}

// ConversationStore persists agent conversation state and messages.
type ConversationStore interface {
	EnsureConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
	NextUserTurn(ctx context.Context, userID, conversationID string) (int, error)
	AppendMessage(ctx context.Context, message domain.ConversationMessage) error
	ListRecentMessages(ctx context.Context, userID, conversationID string, limit int) ([]domain.ConversationMessage, error)
}
