package usecase

import (
	"context"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

// interactionSaver is the slice of the persistence use case the pipeline
// depends on.
type interactionSaver interface {
	Save(ctx context.Context, processed domain.ProcessedEvent, data domain.ExtractedData, confidence float64) (string, error)
}

// ProcessEventUseCase runs the full parse pipeline for one inbound event:
// preprocessing, extraction, warehouse persistence. Preprocessing rejects
// malformed events, extraction always yields a result, and only the
// warehouse write can fail after that.
type ProcessEventUseCase struct {
	preprocessor ports.EventPreprocessor
	engine       ports.ExtractionEngine
	saver        interactionSaver
}

func NewProcessEventUseCase(preprocessor ports.EventPreprocessor, engine ports.ExtractionEngine, saver interactionSaver) *ProcessEventUseCase {
	return &ProcessEventUseCase{
		preprocessor: preprocessor,
		engine:       engine,
		saver:        saver,
	}
}

// Process parses one event end to end and returns the stored outcome.
// Stage errors already carry their own context and pass through unwrapped.
func (uc *ProcessEventUseCase) Process(ctx context.Context, event domain.InteractionEvent) (*domain.ParseOutcome, error) {
	start := time.Now()

	processed, err := uc.preprocessor.Preprocess(ctx, event)
	if err != nil {
		return nil, err
	}

	result := uc.engine.Extract(ctx, *processed)

	interactionID, err := uc.saver.Save(ctx, *processed, result.Data, result.Confidence)
	if err != nil {
		return nil, err
	}

	return &domain.ParseOutcome{
		InteractionID: interactionID,
		Data:          result.Data,
		Confidence:    result.Confidence,
		ElapsedMS:     time.Since(start).Milliseconds(),
	}, nil
}
