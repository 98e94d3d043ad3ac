package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

const (
	summaryInteractionLimit = 20
	defaultFollowUpLimit    = 20
)

// InsightsUseCase serves aggregated warehouse views to the agent tools and
// the MCP server.
type InsightsUseCase struct {
	contacts     ports.ContactRepository
	companies    ports.CompanyRepository
	interactions ports.InteractionRepository
	deals        ports.DealRepository
}

func NewInsightsUseCase(
	contacts ports.ContactRepository,
	companies ports.CompanyRepository,
	interactions ports.InteractionRepository,
	deals ports.DealRepository,
) *InsightsUseCase {
	return &InsightsUseCase{
		contacts:     contacts,
		companies:    companies,
		interactions: interactions,
		deals:        deals,
	}
}

// CustomerSummary rolls up contacts, recent interactions and deals for one
// company. An unknown company yields an empty summary, not an error, so
// the agent can report "nothing on file" instead of failing the turn.
func (uc *InsightsUseCase) CustomerSummary(ctx context.Context, companyName string) (*domain.CustomerSummary, error) {
	name := strings.TrimSpace(companyName)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "customer summary", fmt.Errorf("company name is required"))
	}

	summary := &domain.CustomerSummary{
		Contacts:     []domain.ContactRecord{},
		Interactions: []domain.InteractionRecord{},
		Deals:        []domain.DealRecord{},
	}

	company, err := uc.companies.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find company: %w", err)
	}
	if company == nil {
		return summary, nil
	}
	summary.Company = company

	contacts, err := uc.contacts.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if contacts != nil {
		summary.Contacts = contacts
	}

	interactions, err := uc.interactions.ListByCompany(ctx, company.ID, summaryInteractionLimit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	if interactions != nil {
		summary.Interactions = interactions
	}

	deals, err := uc.deals.ListByCompany(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	if deals != nil {
		summary.Deals = deals
	}
	for _, deal := range summary.Deals {
		summary.TotalAmount += deal.Amount
	}

	return summary, nil
}

// DueFollowUps lists interactions whose follow-up date falls on or before
// the given day.
func (uc *InsightsUseCase) DueFollowUps(ctx context.Context, by time.Time, limit int) ([]domain.InteractionRecord, error) {
	if limit <= 0 {
		limit = defaultFollowUpLimit
	}
	items, err := uc.interactions.ListDueFollowUps(ctx, by, limit)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	if items == nil {
		items = []domain.InteractionRecord{}
	}
	return items, nil
}
