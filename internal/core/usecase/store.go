package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

// SaveInteractionUseCase persists one extraction result as normalized
// warehouse rows: contacts and the company are upserted by natural key, the
// interaction row is inserted append-only, and a deal row is added when a
// positive deal value was extracted. Only the interaction insert is fatal;
// the surrounding writes are best-effort and never block the interaction.
// There is no transaction spanning the four tables; a retry after a partial
// failure re-finds contacts and companies by natural key instead of
// duplicating them.
type SaveInteractionUseCase struct {
	contacts     ports.ContactRepository
	companies    ports.CompanyRepository
	interactions ports.InteractionRepository
	deals        ports.DealRepository
	graph        ports.GraphProjector
	now          func() time.Time
}

func NewSaveInteractionUseCase(
	contacts ports.ContactRepository,
	companies ports.CompanyRepository,
	interactions ports.InteractionRepository,
	deals ports.DealRepository,
	graph ports.GraphProjector,
) *SaveInteractionUseCase {
	return &SaveInteractionUseCase{
		contacts:     contacts,
		companies:    companies,
		interactions: interactions,
		deals:        deals,
		graph:        graph,
		now:          time.Now,
	}
}

// Save writes the rows for one processed event and returns the generated
// interaction identifier.
func (uc *SaveInteractionUseCase) Save(ctx context.Context, processed domain.ProcessedEvent, data domain.ExtractedData, confidence float64) (string, error) {
	var contactID *string
	var firstContact *domain.Contact
	for i, contact := range data.Contacts {
		if !contact.HasIdentity() {
			continue
		}
		id := uc.upsertContact(ctx, contact)
		// First-mentioned contact carries the interaction.
		if contactID == nil {
			contactID = &id
			firstContact = &data.Contacts[i]
		}
	}

	var companyID *string
	if data.Company != nil {
		id := uc.upsertCompany(ctx, *data.Company)
		companyID = &id
	}

	occurredAt := processed.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = uc.now().UTC()
	}

	record := domain.InteractionRecord{
		ID:           uuid.NewString(),
		ContactID:    contactID,
		CompanyID:    companyID,
		Channel:      processed.Channel,
		OccurredAt:   occurredAt,
		RawText:      processed.RawText,
		Summary:      data.Summary,
		ActionItems:  data.ActionItems,
		NextStep:     data.NextStep,
		FollowUpDate: data.FollowUpDate,
		Sentiment:    data.Sentiment,
		RiskFlags:    data.RiskFlags,
		Confidence:   confidence,
	}
	if err := uc.interactions.Insert(ctx, record); err != nil {
		return "", fmt.Errorf("insert interaction: %w", err)
	}

	var deal *domain.DealRecord
	if data.DealValue != nil && *data.DealValue > 0 {
		deal = uc.saveDeal(ctx, contactID, companyID, data)
	}

	uc.projectGraph(ctx, record, firstContact, data.Company, deal)

	return record.ID, nil
}

// upsertContact returns a contact identifier even when the write failed:
// the interaction row keeps its reference and the warehouse converges on a
// later retry.
func (uc *SaveInteractionUseCase) upsertContact(ctx context.Context, contact domain.Contact) string {
	if contact.Email != nil {
		existing, err := uc.contacts.FindByEmail(ctx, *contact.Email)
		if err != nil {
			slog.Warn("contact_lookup_failed", "email", *contact.Email, "error", err)
		} else if existing != nil {
			profile := domain.ContactProfile{
				FullName: contact.FullName,
				Title:    contact.Title,
				Phone:    contact.Phone,
			}
			if err := uc.contacts.MergeProfile(ctx, existing.ID, profile, uc.now().UTC()); err != nil {
				slog.Warn("contact_merge_failed", "contact_id", existing.ID, "error", err)
			}
			return existing.ID
		}
	}

	record := domain.ContactRecord{
		ID:          uuid.NewString(),
		FullName:    contact.FullName,
		Title:       contact.Title,
		Email:       contact.Email,
		Phone:       contact.Phone,
		Tags:        []string{},
		Embeddings:  []float64{},
		LastTouchAt: uc.now().UTC(),
	}
	if err := uc.contacts.Insert(ctx, record); err != nil {
		slog.Warn("contact_insert_failed", "contact_id", record.ID, "error", err)
	}
	return record.ID
}

func (uc *SaveInteractionUseCase) upsertCompany(ctx context.Context, name string) string {
	existing, err := uc.companies.FindByName(ctx, name)
	if err != nil {
		slog.Warn("company_lookup_failed", "name", name, "error", err)
	} else if existing != nil {
		// Enrichment fields are never overwritten by this pipeline.
		return existing.ID
	}

	record := domain.CompanyRecord{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := uc.companies.Insert(ctx, record); err != nil {
		slog.Warn("company_insert_failed", "company_id", record.ID, "error", err)
	}
	return record.ID
}

// saveDeal returns the attempted row even when the insert failed, so the
// graph projection mirrors what the warehouse will hold after a retry.
func (uc *SaveInteractionUseCase) saveDeal(ctx context.Context, contactID, companyID *string, data domain.ExtractedData) *domain.DealRecord {
	currency := data.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}
	record := domain.DealRecord{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		ContactID: contactID,
		Amount:    *data.DealValue,
		Currency:  currency,
		NextStep:  data.NextStep,
	}
	if err := uc.deals.Insert(ctx, record); err != nil {
		slog.Warn("deal_insert_failed", "deal_id", record.ID, "error", err)
	}
	return &record
}

func (uc *SaveInteractionUseCase) projectGraph(ctx context.Context, record domain.InteractionRecord, contact *domain.Contact, companyName *string, deal *domain.DealRecord) {
	if uc.graph == nil {
		return
	}
	if err := uc.graph.ProjectInteraction(ctx, record, contact, companyName, deal); err != nil {
		slog.Warn("graph_projection_failed", "interaction_id", record.ID, "error", err)
	}
}
