package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/ardmere/crmparse/internal/core/domain"
)

type preprocessorFake struct {
	processed *domain.ProcessedEvent
	err       error
}

func (f *preprocessorFake) Preprocess(_ context.Context, _ domain.InteractionEvent) (*domain.ProcessedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.processed, nil
}

type extractionEngineFake struct {
	result domain.ExtractionResult
	calls  int
}

func (f *extractionEngineFake) Extract(_ context.Context, _ domain.ProcessedEvent) domain.ExtractionResult {
	f.calls++
	return f.result
}

type saverFake struct {
	id       string
	err      error
	calls    int
	lastData domain.ExtractedData
	lastConf float64
}

func (f *saverFake) Save(_ context.Context, _ domain.ProcessedEvent, data domain.ExtractedData, confidence float64) (string, error) {
	f.calls++
	f.lastData = data
	f.lastConf = confidence
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func TestProcessReturnsStoredOutcome(t *testing.T) {
	pre := &preprocessorFake{processed: &domain.ProcessedEvent{RawText: "call notes", Channel: domain.ChannelCall, Source: "webhook"}}
	engine := &extractionEngineFake{result: domain.ExtractionResult{
		Data:       domain.ExtractedData{Summary: "short recap", Currency: "USD"},
		Confidence: 0.9,
	}}
	saver := &saverFake{id: "interaction-1"}
	uc := NewProcessEventUseCase(pre, engine, saver)

	outcome, err := uc.Process(context.Background(), domain.InteractionEvent{RawText: "call notes", Channel: domain.ChannelCall, Source: "webhook"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.InteractionID != "interaction-1" {
		t.Fatalf("unexpected interaction id %q", outcome.InteractionID)
	}
	if outcome.Data.Summary != "short recap" || !nearly(outcome.Confidence, 0.9) {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.ElapsedMS < 0 {
		t.Fatalf("elapsed must be non-negative, got %d", outcome.ElapsedMS)
	}
	if saver.calls != 1 || !nearly(saver.lastConf, 0.9) {
		t.Fatalf("saver must receive the extraction confidence, got calls=%d conf=%v", saver.calls, saver.lastConf)
	}
}

func TestProcessRejectsInvalidEventBeforeExtraction(t *testing.T) {
	pre := &preprocessorFake{err: domain.WrapError(domain.ErrInvalidInput, "preprocess event", errors.New("source is required"))}
	engine := &extractionEngineFake{}
	saver := &saverFake{id: "unused"}
	uc := NewProcessEventUseCase(pre, engine, saver)

	_, err := uc.Process(context.Background(), domain.InteractionEvent{Channel: domain.ChannelCall})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if engine.calls != 0 || saver.calls != 0 {
		t.Fatalf("no stage may run after a rejected event")
	}
}

func TestProcessPropagatesStorageFailure(t *testing.T) {
	pre := &preprocessorFake{processed: &domain.ProcessedEvent{RawText: "x", Channel: domain.ChannelCall, Source: "webhook"}}
	engine := &extractionEngineFake{result: domain.ExtractionResult{Data: domain.ExtractedData{Summary: "x"}, Confidence: 0.3}}
	saver := &saverFake{err: errors.New("stream closed")}
	uc := NewProcessEventUseCase(pre, engine, saver)

	if _, err := uc.Process(context.Background(), domain.InteractionEvent{RawText: "x", Channel: domain.ChannelCall, Source: "webhook"}); err == nil {
		t.Fatalf("expected storage failure to propagate")
	}
	if engine.calls != 1 {
		t.Fatalf("extraction must run before the failing save")
	}
}

func newPipeline(model *chatModelFake) (*ProcessEventUseCase, *interactionRepoFake, *dealRepoFake) {
	contacts := &contactRepoFake{byEmail: map[string]*domain.ContactRecord{}}
	companies := &companyRepoFake{byName: map[string]*domain.CompanyRecord{}}
	interactions := &interactionRepoFake{}
	deals := &dealRepoFake{}
	saver := NewSaveInteractionUseCase(contacts, companies, interactions, deals, nil)
	uc := NewProcessEventUseCase(NewPreprocessUseCase(&transcriberFake{}), NewExtractUseCase(model), saver)
	return uc, interactions, deals
}

func TestPipelineStoresInteractionAndDeal(t *testing.T) {
	model := &chatModelFake{jsonOutput: `{
		"summary": "Renewal call with DataFlow, agreed on a $75,000 annual contract",
		"contacts": [{"full_name": "Maria Lopez", "email": "maria@dataflow.io"}],
		"company": "DataFlow Systems",
		"deal_value": "$75,000",
		"next_step": "send contract",
		"follow_up_date": "2025-11-12",
		"sentiment": "positive"
	}`}
	uc, interactions, deals := newPipeline(model)

	event := domain.InteractionEvent{
		RawText: "Call with Maria Lopez of DataFlow Systems about the $75,000 renewal, follow up 2025-11-12",
		Channel: domain.ChannelCall,
		Source:  "webhook",
	}
	outcome, err := uc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !nearly(outcome.Confidence, 0.9) {
		t.Fatalf("clean validated run must land at 0.9, got %v", outcome.Confidence)
	}
	if len(interactions.inserted) != 1 {
		t.Fatalf("expected one interaction row, got %d", len(interactions.inserted))
	}
	row := interactions.inserted[0]
	if row.ID != outcome.InteractionID || row.Confidence < 0.3 {
		t.Fatalf("unexpected interaction row %+v", row)
	}
	if row.FollowUpDate == nil || *row.FollowUpDate != "2025-11-12" {
		t.Fatalf("follow-up date must survive the pipeline, got %v", row.FollowUpDate)
	}
	if len(deals.inserted) != 1 {
		t.Fatalf("expected one deal row, got %d", len(deals.inserted))
	}
	deal := deals.inserted[0]
	if deal.Amount != 75000 || deal.Currency != "USD" {
		t.Fatalf("unexpected deal row %+v", deal)
	}
}

func TestPipelineFallsBackOnEmptyEvent(t *testing.T) {
	model := &chatModelFake{jsonOutput: "there is nothing to extract here"}
	uc, interactions, deals := newPipeline(model)

	event := domain.InteractionEvent{Channel: domain.ChannelEmail, Source: "gmail"}
	outcome, err := uc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome.Data.Summary != "No content available" {
		t.Fatalf("empty event must produce the placeholder summary, got %q", outcome.Data.Summary)
	}
	if len(outcome.Data.Contacts) != 0 || len(outcome.Data.ActionItems) != 0 {
		t.Fatalf("fallback record must carry no contacts or action items, got %+v", outcome.Data)
	}
	if !nearly(outcome.Confidence, 0.3) {
		t.Fatalf("fallback confidence must stay at the floor, got %v", outcome.Confidence)
	}
	if len(interactions.inserted) != 1 || interactions.inserted[0].RawText != "" {
		t.Fatalf("interaction row must keep the original raw text, got %+v", interactions.inserted)
	}
	if len(deals.inserted) != 0 {
		t.Fatalf("no deal row without a deal value, got %+v", deals.inserted)
	}
}

func TestPipelineFallsBackOnModelFailure(t *testing.T) {
	model := &chatModelFake{err: errors.New("model unavailable")}
	uc, interactions, deals := newPipeline(model)

	event := domain.InteractionEvent{
		RawText: "Quick sync with the Initech procurement team",
		Channel: domain.ChannelMeeting,
		Source:  "zoom",
	}
	outcome, err := uc.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("a model failure must not fail the pipeline, got %v", err)
	}
	if !nearly(outcome.Confidence, 0.3) {
		t.Fatalf("fallback confidence must stay at the floor, got %v", outcome.Confidence)
	}
	if outcome.Data.Summary != event.RawText {
		t.Fatalf("fallback summary must quote the input, got %q", outcome.Data.Summary)
	}
	if len(interactions.inserted) != 1 || len(deals.inserted) != 0 {
		t.Fatalf("storage must proceed normally on fallback")
	}
}
