package usecase

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

const reportRowLimit = 500

// ReportUseCase assembles the pipeline snapshot and renders it through the
// report writer.
type ReportUseCase struct {
	contacts     ports.ContactRepository
	interactions ports.InteractionRepository
	deals        ports.DealRepository
	writer       ports.ReportWriter
	now          func() time.Time
}

func NewReportUseCase(
	contacts ports.ContactRepository,
	interactions ports.InteractionRepository,
	deals ports.DealRepository,
	writer ports.ReportWriter,
) *ReportUseCase {
	return &ReportUseCase{
		contacts:     contacts,
		interactions: interactions,
		deals:        deals,
		writer:       writer,
		now:          time.Now,
	}
}

func (uc *ReportUseCase) WritePipelineReport(ctx context.Context, w io.Writer) error {
	interactions, err := uc.interactions.ListRecent(ctx, reportRowLimit)
	if err != nil {
		return fmt.Errorf("list interactions: %w", err)
	}
	deals, err := uc.deals.ListRecent(ctx, reportRowLimit)
	if err != nil {
		return fmt.Errorf("list deals: %w", err)
	}
	contacts, err := uc.contacts.ListRecent(ctx, reportRowLimit)
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}

	report := domain.PipelineReport{
		GeneratedAt:  uc.now().UTC(),
		Interactions: interactions,
		Deals:        deals,
		Contacts:     contacts,
	}
	if err := uc.writer.WritePipeline(ctx, w, report); err != nil {
		return fmt.Errorf("write pipeline report: %w", err)
	}
	return nil
}
