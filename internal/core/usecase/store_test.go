package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
)

type mergeCall struct {
	id      string
	profile domain.ContactProfile
}

type contactRepoFake struct {
	byEmail   map[string]*domain.ContactRecord
	byCompany []domain.ContactRecord
	inserted  []domain.ContactRecord
	merges    []mergeCall
	findErr   error
	insertErr error
	mergeErr  error
}

func (f *contactRepoFake) FindByEmail(_ context.Context, email string) (*domain.ContactRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byEmail[email], nil
}

func (f *contactRepoFake) Insert(_ context.Context, record domain.ContactRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *contactRepoFake) MergeProfile(_ context.Context, id string, profile domain.ContactProfile, _ time.Time) error {
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.merges = append(f.merges, mergeCall{id: id, profile: profile})
	return nil
}

func (f *contactRepoFake) ListRecent(context.Context, int) ([]domain.ContactRecord, error) {
	return f.inserted, nil
}

func (f *contactRepoFake) ListByCompany(context.Context, string) ([]domain.ContactRecord, error) {
	return f.byCompany, nil
}

type companyRepoFake struct {
	byName    map[string]*domain.CompanyRecord
	inserted  []domain.CompanyRecord
	findErr   error
	insertErr error
}

func (f *companyRepoFake) FindByName(_ context.Context, name string) (*domain.CompanyRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byName[strings.ToLower(name)], nil
}

func (f *companyRepoFake) Insert(_ context.Context, record domain.CompanyRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

type interactionRepoFake struct {
	inserted     []domain.InteractionRecord
	byCompany    []domain.InteractionRecord
	due          []domain.InteractionRecord
	insertErr    error
	listErr      error
	lastDueBy    time.Time
	lastDueLimit int
}

func (f *interactionRepoFake) Insert(_ context.Context, record domain.InteractionRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *interactionRepoFake) GetByID(context.Context, string) (*domain.InteractionRecord, error) {
	return nil, domain.ErrInteractionNotFound
}

func (f *interactionRepoFake) ListRecent(context.Context, int) ([]domain.InteractionRecord, error) {
	return f.inserted, nil
}

func (f *interactionRepoFake) ListByCompany(context.Context, string, int) ([]domain.InteractionRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byCompany, nil
}

func (f *interactionRepoFake) ListDueFollowUps(_ context.Context, by time.Time, limit int) ([]domain.InteractionRecord, error) {
	f.lastDueBy = by
	f.lastDueLimit = limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.due, nil
}

type dealRepoFake struct {
	inserted  []domain.DealRecord
	byCompany []domain.DealRecord
	insertErr error
}

func (f *dealRepoFake) Insert(_ context.Context, record domain.DealRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *dealRepoFake) ListRecent(context.Context, int) ([]domain.DealRecord, error) {
	return f.inserted, nil
}

func (f *dealRepoFake) ListByCompany(context.Context, string) ([]domain.DealRecord, error) {
	return f.byCompany, nil
}

type graphProjectorFake struct {
	projected int
	lastDeal  *domain.DealRecord
	err       error
}

func (f *graphProjectorFake) ProjectInteraction(_ context.Context, _ domain.InteractionRecord, _ *domain.Contact, _ *string, deal *domain.DealRecord) error {
	if f.err != nil {
		return f.err
	}
	f.projected++
	f.lastDeal = deal
	return nil
}

func (f *graphProjectorFake) Close(context.Context) error { return nil }

func newSaveFixture() (*SaveInteractionUseCase, *contactRepoFake, *companyRepoFake, *interactionRepoFake, *dealRepoFake) {
	contacts := &contactRepoFake{byEmail: map[string]*domain.ContactRecord{}}
	companies := &companyRepoFake{byName: map[string]*domain.CompanyRecord{}}
	interactions := &interactionRepoFake{}
	deals := &dealRepoFake{}
	uc := NewSaveInteractionUseCase(contacts, companies, interactions, deals, nil)
	return uc, contacts, companies, interactions, deals
}

func sampleProcessedEvent() domain.ProcessedEvent {
	return domain.ProcessedEvent{
		RawText:    "Call with Maria about the renewal",
		Channel:    domain.ChannelCall,
		Source:     "webhook",
		OccurredAt: time.Date(2025, 10, 1, 15, 0, 0, 0, time.UTC),
	}
}

func TestSaveInsertsInteractionWithFirstContact(t *testing.T) {
	uc, contacts, companies, interactions, _ := newSaveFixture()

	data := domain.ExtractedData{
		Contacts: []domain.Contact{
			{FullName: strPtr("Maria Lopez"), Email: strPtr("maria@dataflow.io")},
			{FullName: strPtr("Sam Ortiz")},
		},
		Company:  strPtr("DataFlow Systems"),
		Currency: "USD",
		Summary:  "renewal call",
	}

	id, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.9)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated interaction id")
	}
	if len(contacts.inserted) != 2 {
		t.Fatalf("expected 2 contact inserts, got %d", len(contacts.inserted))
	}
	if len(companies.inserted) != 1 || companies.inserted[0].Name != "DataFlow Systems" {
		t.Fatalf("unexpected company inserts %#v", companies.inserted)
	}
	if len(interactions.inserted) != 1 {
		t.Fatalf("expected 1 interaction insert, got %d", len(interactions.inserted))
	}

	row := interactions.inserted[0]
	if row.ID != id {
		t.Fatalf("returned id %q does not match stored row %q", id, row.ID)
	}
	if row.ContactID == nil || *row.ContactID != contacts.inserted[0].ID {
		t.Fatalf("interaction must reference the first extracted contact")
	}
	if row.CompanyID == nil || *row.CompanyID != companies.inserted[0].ID {
		t.Fatalf("interaction must reference the upserted company")
	}
	if row.Summary != "renewal call" || row.Confidence != 0.9 {
		t.Fatalf("unexpected interaction row %+v", row)
	}
	if !row.OccurredAt.Equal(time.Date(2025, 10, 1, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected occurred_at %v", row.OccurredAt)
	}
}

func TestSaveMergesExistingContactByEmail(t *testing.T) {
	uc, contacts, _, interactions, _ := newSaveFixture()
	contacts.byEmail["maria@dataflow.io"] = &domain.ContactRecord{ID: "contact-1", Email: strPtr("maria@dataflow.io")}

	data := domain.ExtractedData{
		Contacts: []domain.Contact{{FullName: strPtr("Maria Lopez"), Title: strPtr("VP Sales"), Email: strPtr("maria@dataflow.io")}},
		Summary:  "intro call",
	}

	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(contacts.inserted) != 0 {
		t.Fatalf("existing contact must not be reinserted, got %#v", contacts.inserted)
	}
	if len(contacts.merges) != 1 || contacts.merges[0].id != "contact-1" {
		t.Fatalf("expected one merge for contact-1, got %#v", contacts.merges)
	}
	if got := contacts.merges[0].profile.Title; got == nil || *got != "VP Sales" {
		t.Fatalf("merge must carry the new title, got %v", got)
	}
	row := interactions.inserted[0]
	if row.ContactID == nil || *row.ContactID != "contact-1" {
		t.Fatalf("interaction must reference the existing contact id")
	}
}

func TestSaveSkipsContactsWithoutIdentity(t *testing.T) {
	uc, contacts, _, interactions, _ := newSaveFixture()

	data := domain.ExtractedData{
		Contacts: []domain.Contact{{Title: strPtr("VP Sales")}},
		Summary:  "note",
	}

	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(contacts.inserted) != 0 {
		t.Fatalf("identity-less contact must be skipped, got %#v", contacts.inserted)
	}
	if interactions.inserted[0].ContactID != nil {
		t.Fatalf("interaction must carry no contact reference")
	}
}

func TestSaveReusesExistingCompanyWithoutUpdate(t *testing.T) {
	uc, _, companies, interactions, _ := newSaveFixture()
	companies.byName["dataflow systems"] = &domain.CompanyRecord{ID: "company-1", Name: "DataFlow Systems"}

	data := domain.ExtractedData{Company: strPtr("dataflow systems"), Summary: "note"}

	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if len(companies.inserted) != 0 {
		t.Fatalf("existing company must not be reinserted, got %#v", companies.inserted)
	}
	row := interactions.inserted[0]
	if row.CompanyID == nil || *row.CompanyID != "company-1" {
		t.Fatalf("interaction must reference the existing company id")
	}
}

func TestSaveCreatesDealOnlyForPositiveValue(t *testing.T) {
	cases := []struct {
		name      string
		dealValue *float64
		wantDeals int
	}{
		{"positive", floatPtr(75000), 1},
		{"zero", floatPtr(0), 0},
		{"negative", floatPtr(-10), 0},
		{"absent", nil, 0},
	}
	for _, tc := range cases {
		uc, _, _, _, deals := newSaveFixture()
		data := domain.ExtractedData{
			Summary:   "note",
			DealValue: tc.dealValue,
			Currency:  "USD",
			NextStep:  strPtr("send contract"),
		}
		if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err != nil {
			t.Fatalf("%s: Save() error = %v", tc.name, err)
		}
		if len(deals.inserted) != tc.wantDeals {
			t.Fatalf("%s: expected %d deal rows, got %d", tc.name, tc.wantDeals, len(deals.inserted))
		}
		if tc.wantDeals == 1 {
			deal := deals.inserted[0]
			if deal.Amount != 75000 || deal.Currency != "USD" {
				t.Fatalf("unexpected deal row %+v", deal)
			}
			if deal.NextStep == nil || *deal.NextStep != "send contract" {
				t.Fatalf("deal must carry the next step, got %v", deal.NextStep)
			}
		}
	}
}

func TestSaveDealFailureIsNotFatal(t *testing.T) {
	uc, _, _, interactions, deals := newSaveFixture()
	deals.insertErr = errors.New("quota exceeded")

	data := domain.ExtractedData{Summary: "note", DealValue: floatPtr(1000), Currency: "USD"}

	id, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8)
	if err != nil {
		t.Fatalf("deal failure must not fail the save, got %v", err)
	}
	if id == "" || len(interactions.inserted) != 1 {
		t.Fatalf("interaction row must still be written")
	}
}

func TestSaveContactInsertFailureIsNotFatal(t *testing.T) {
	uc, contacts, _, interactions, _ := newSaveFixture()
	contacts.insertErr = errors.New("schema drift")

	data := domain.ExtractedData{
		Contacts: []domain.Contact{{FullName: strPtr("Maria Lopez")}},
		Summary:  "note",
	}

	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err != nil {
		t.Fatalf("contact failure must not fail the save, got %v", err)
	}
	row := interactions.inserted[0]
	if row.ContactID == nil || *row.ContactID == "" {
		t.Fatalf("interaction keeps the generated contact reference even when the insert failed")
	}
}

func TestSaveInteractionInsertFailureIsFatal(t *testing.T) {
	uc, _, _, interactions, deals := newSaveFixture()
	interactions.insertErr = errors.New("stream closed")

	data := domain.ExtractedData{Summary: "note", DealValue: floatPtr(1000)}

	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err == nil {
		t.Fatalf("expected interaction insert failure to propagate")
	}
	if len(deals.inserted) != 0 {
		t.Fatalf("no deal row may be written after a fatal interaction failure")
	}
}

func TestSaveDefaultsZeroOccurredAtToNow(t *testing.T) {
	uc, _, _, interactions, _ := newSaveFixture()
	fixed := time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)
	uc.now = fixedClock(fixed)

	event := sampleProcessedEvent()
	event.OccurredAt = time.Time{}

	if _, err := uc.Save(context.Background(), event, domain.ExtractedData{Summary: "note"}, 0.8); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !interactions.inserted[0].OccurredAt.Equal(fixed) {
		t.Fatalf("zero occurred_at must default to now, got %v", interactions.inserted[0].OccurredAt)
	}
}

func TestSaveGraphProjectionFailureIsNotFatal(t *testing.T) {
	contacts := &contactRepoFake{byEmail: map[string]*domain.ContactRecord{}}
	companies := &companyRepoFake{byName: map[string]*domain.CompanyRecord{}}
	interactions := &interactionRepoFake{}
	deals := &dealRepoFake{}
	graph := &graphProjectorFake{err: errors.New("bolt handshake failed")}
	uc := NewSaveInteractionUseCase(contacts, companies, interactions, deals, graph)

	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), domain.ExtractedData{Summary: "note"}, 0.8); err != nil {
		t.Fatalf("graph failure must not fail the save, got %v", err)
	}
	if len(interactions.inserted) != 1 {
		t.Fatalf("interaction row must still be written")
	}
}

func TestSaveGraphProjectionCarriesDeal(t *testing.T) {
	contacts := &contactRepoFake{byEmail: map[string]*domain.ContactRecord{}}
	companies := &companyRepoFake{byName: map[string]*domain.CompanyRecord{}}
	interactions := &interactionRepoFake{}
	deals := &dealRepoFake{}
	graph := &graphProjectorFake{}
	uc := NewSaveInteractionUseCase(contacts, companies, interactions, deals, graph)

	data := domain.ExtractedData{
		Summary:   "note",
		Company:   strPtr("DataFlow Systems"),
		DealValue: floatPtr(75000),
		Currency:  "USD",
	}
	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), data, 0.8); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if graph.projected != 1 {
		t.Fatalf("expected one projection, got %d", graph.projected)
	}
	if graph.lastDeal == nil || graph.lastDeal.Amount != 75000 {
		t.Fatalf("projection must carry the saved deal, got %+v", graph.lastDeal)
	}
	if graph.lastDeal.CompanyID == nil || *graph.lastDeal.CompanyID != companies.inserted[0].ID {
		t.Fatalf("projected deal must reference the upserted company")
	}

	graph.lastDeal = nil
	if _, err := uc.Save(context.Background(), sampleProcessedEvent(), domain.ExtractedData{Summary: "note"}, 0.8); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if graph.lastDeal != nil {
		t.Fatalf("projection without a deal value must carry no deal, got %+v", graph.lastDeal)
	}
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }
