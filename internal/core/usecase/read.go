package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

// ReadInteractionUseCase serves stored interactions to the HTTP surface.
type ReadInteractionUseCase struct {
	interactions ports.InteractionRepository
}

func NewReadInteractionUseCase(interactions ports.InteractionRepository) *ReadInteractionUseCase {
	return &ReadInteractionUseCase{interactions: interactions}
}

func (uc *ReadInteractionUseCase) GetByID(ctx context.Context, id string) (*domain.InteractionRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get interaction", fmt.Errorf("interaction id is required"))
	}
	record, err := uc.interactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get interaction: %w", err)
	}
	return record, nil
}
