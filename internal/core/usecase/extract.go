package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

// Confidence levels are fixed calibration points, not tunables: extraction
// output starts at 0.8, validation lifts it to at most 0.9, enrichment to at
// most 0.95, and every failure path lands on the 0.3 floor.
const (
	extractedConfidence = 0.8
	floorConfidence     = 0.3
	validationBonus     = 0.1
	validationCeiling   = 0.9
	validationPenalty   = 0.2
	enrichmentBonus     = 0.05
	enrichmentCeiling   = 0.95
	enrichmentThreshold = 0.8
)

const extractionSystemPrompt = `You are an expert CRM data extraction assistant. Extract structured information from the interaction text you are given.

Extract the following fields:
- contacts: list of people mentioned (full_name, title, email, company, phone)
- company: company name mentioned
- deal_value: numeric value of any deal mentioned
- currency: currency code (default: USD)
- next_step: next action item or step mentioned
- follow_up_date: date in YYYY-MM-DD format if mentioned
- sentiment: positive, neutral, or negative
- risk_flags: list of any risk indicators or concerns
- summary: concise summary of the interaction (REQUIRED)
- action_items: list of specific action items mentioned

Return ONLY a valid JSON object matching this schema:
{
  "contacts": [{"full_name": "...", "title": "...", "email": "...", "company": "...", "phone": "..."}],
  "company": "...",
  "deal_value": 0.0,
  "currency": "USD",
  "next_step": "...",
  "follow_up_date": "YYYY-MM-DD",
  "sentiment": "positive|neutral|negative",
  "risk_flags": ["..."],
  "summary": "...",
  "action_items": ["..."]
}`

// ExtractUseCase turns a preprocessed event into structured CRM data plus a
// confidence score via a three-stage pipeline: extract with the model,
// validate the candidate against the record contract, optionally enrich.
// Extract never fails; every stage degrades to a deterministic fallback and
// adjusts confidence instead of returning an error.
type ExtractUseCase struct {
	model ports.ChatModel
	now   func() time.Time
}

func NewExtractUseCase(model ports.ChatModel) *ExtractUseCase {
	return &ExtractUseCase{
		model: model,
		now:   time.Now,
	}
}

type extractionState struct {
	event      domain.ProcessedEvent
	candidate  map[string]any
	validated  *domain.ExtractedData
	confidence float64
	errors     []string
}

func (uc *ExtractUseCase) Extract(ctx context.Context, event domain.ProcessedEvent) domain.ExtractionResult {
	start := time.Now()

	state := &extractionState{event: event, candidate: map[string]any{}}
	uc.runExtract(ctx, state)
	uc.runValidate(state)
	if shouldEnrich(state) {
		runEnrich(state)
	}

	result := domain.ExtractionResult{Confidence: state.confidence}
	switch {
	case state.validated != nil:
		result.Data = *state.validated
	default:
		data, err := domain.ParseExtractedData(state.candidate)
		if err != nil {
			state.errors = append(state.errors, fmt.Sprintf("final parse error: %v", err))
			data = domain.FallbackExtractedData(event.RawText)
			result.Confidence = floorConfidence
		}
		result.Data = data
	}
	result.ElapsedMS = time.Since(start).Milliseconds()
	return result
}

func (uc *ExtractUseCase) runExtract(ctx context.Context, state *extractionState) {
	text := state.event.InputText()

	candidate, err := uc.completeExtraction(ctx, text)
	if err != nil {
		state.errors = append(state.errors, fmt.Sprintf("extraction error: %v", err))
		state.candidate = fallbackCandidate(text)
		state.confidence = floorConfidence
		return
	}

	domain.NormalizeCandidate(candidate, uc.now())
	state.candidate = candidate
	state.confidence = extractedConfidence
}

func (uc *ExtractUseCase) completeExtraction(ctx context.Context, text string) (map[string]any, error) {
	raw, err := uc.model.CompleteJSON(ctx, extractionSystemPrompt, buildExtractionPrompt(text))
	if err != nil {
		return nil, err
	}
	var candidate map[string]any
	if err := json.Unmarshal([]byte(raw), &candidate); err != nil {
		return nil, fmt.Errorf("parse extraction json: %w", err)
	}
	if candidate == nil {
		return nil, fmt.Errorf("extraction returned no object")
	}
	return candidate, nil
}

func (uc *ExtractUseCase) runValidate(state *extractionState) {
	data, err := domain.ParseExtractedData(state.candidate)
	if err != nil {
		state.errors = append(state.errors, fmt.Sprintf("validation error: %v", err))
		if !hasSummary(state.candidate) {
			state.candidate["summary"] = domain.FallbackSummary(state.event.RawText)
		}
		state.confidence = max(state.confidence-validationPenalty, floorConfidence)
		return
	}

	state.validated = &data
	// The bonus rewards genuine model output; a substituted fallback record
	// stays at the floor.
	if len(state.errors) == 0 && state.confidence < validationCeiling {
		state.confidence = min(state.confidence+validationBonus, validationCeiling)
	}
}

func shouldEnrich(state *extractionState) bool {
	return state.confidence < enrichmentThreshold && len(state.errors) == 0
}

func runEnrich(state *extractionState) {
	if state.confidence < enrichmentCeiling {
		state.confidence = min(state.confidence+enrichmentBonus, enrichmentCeiling)
	}
}

func hasSummary(candidate map[string]any) bool {
	raw, ok := candidate["summary"]
	if !ok || raw == nil {
		return false
	}
	text, ok := raw.(string)
	return ok && text != ""
}

func fallbackCandidate(text string) map[string]any {
	return map[string]any{
		"summary":      domain.FallbackSummary(text),
		"contacts":     []any{},
		"action_items": []any{},
		"risk_flags":   []any{},
	}
}

func buildExtractionPrompt(text string) string {
	return fmt.Sprintf("Extract information from this interaction:\n\n%s", text)
}
