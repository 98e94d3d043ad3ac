package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/ardmere/crmparse/internal/config"
	"github.com/ardmere/crmparse/internal/core/domain"
)

var testOccurredAt = time.Date(2025, 10, 14, 9, 30, 0, 0, time.UTC)

type fakeIngestor struct {
	err error
}

func (f fakeIngestor) IngestGmail(_ context.Context, msg domain.GmailMessage) (*domain.InteractionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InteractionEvent{ID: "evt-gmail", Channel: domain.ChannelEmail, Source: "gmail", RawText: msg.Body}, nil
}

func (f fakeIngestor) IngestZoom(_ context.Context, meeting domain.ZoomMeeting) (*domain.InteractionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InteractionEvent{ID: "evt-zoom", Channel: domain.ChannelMeeting, Source: "zoom", RawText: meeting.Transcript}, nil
}

func (f fakeIngestor) IngestWhatsApp(_ context.Context, msg domain.WhatsAppMessage) (*domain.InteractionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InteractionEvent{ID: "evt-whatsapp", Channel: domain.ChannelVoiceNote, Source: "whatsapp", AudioURI: msg.AudioURI}, nil
}

func (f fakeIngestor) IngestCalendar(_ context.Context, cal domain.CalendarEvent) (*domain.InteractionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InteractionEvent{ID: "evt-calendar", Channel: domain.ChannelMeeting, Source: "calendar", RawText: cal.Description}, nil
}

func (f fakeIngestor) IngestWebhook(_ context.Context, event domain.InteractionEvent) (*domain.InteractionEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	queued := event
	if queued.ID == "" {
		queued.ID = "evt-webhook"
	}
	return &queued, nil
}

type fakePreprocessor struct {
	err error
}

func (f fakePreprocessor) Preprocess(_ context.Context, event domain.InteractionEvent) (*domain.ProcessedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ProcessedEvent{
		RawText:    event.RawText,
		Channel:    event.Channel,
		Source:     event.Source,
		OccurredAt: testOccurredAt,
	}, nil
}

type fakeEngine struct {
	confidence float64
}

func (f fakeEngine) Extract(_ context.Context, _ domain.ProcessedEvent) domain.ExtractionResult {
	confidence := f.confidence
	if confidence == 0 {
		confidence = 0.9
	}
	return domain.ExtractionResult{
		Data: domain.ExtractedData{
			Contacts:    []domain.Contact{},
			Currency:    "USD",
			RiskFlags:   []string{},
			Summary:     "engine summary",
			ActionItems: []string{},
		},
		Confidence: confidence,
		ElapsedMS:  5,
	}
}

type fakeProcessor struct {
	err error
}

func (f fakeProcessor) Process(_ context.Context, _ domain.InteractionEvent) (*domain.ParseOutcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	dealValue := 50000.0
	return &domain.ParseOutcome{
		InteractionID: "int-1",
		Data: domain.ExtractedData{
			Contacts:    []domain.Contact{},
			DealValue:   &dealValue,
			Currency:    "USD",
			RiskFlags:   []string{},
			Summary:     "pipeline summary",
			ActionItems: []string{"send quote"},
		},
		Confidence: 0.9,
		ElapsedMS:  12,
	}, nil
}

type fakeReader struct {
	err error
}

func (f fakeReader) GetByID(_ context.Context, id string) (*domain.InteractionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.InteractionRecord{
		ID:          id,
		Channel:     domain.ChannelEmail,
		OccurredAt:  testOccurredAt,
		Summary:     "stored summary",
		ActionItems: []string{},
		RiskFlags:   []string{},
		Confidence:  0.9,
	}, nil
}

type fakeAgent struct {
	err     error
	lastReq *domain.AgentChatRequest
}

func (f *fakeAgent) Chat(_ context.Context, req domain.AgentChatRequest) (*domain.AgentRunResult, error) {
	f.lastReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.AgentRunResult{
		ConversationID: "conv-1",
		Answer:         "agent answer",
		Iterations:     2,
		ToolsInvoked:   []string{"run_query"},
		ToolEvents:     []domain.AgentToolEvent{{Tool: "run_query", Status: "success", Output: "[]"}},
	}, nil
}

type fakeReports struct {
	err error
}

func (f fakeReports) WritePipelineReport(_ context.Context, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := w.Write([]byte("PK\x03\x04workbook"))
	return err
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, fakeIngestor{}, fakePreprocessor{}, fakeEngine{}, fakeProcessor{}, fakeReader{}, &fakeAgent{}, fakeReports{}, nil).Handler()
}
