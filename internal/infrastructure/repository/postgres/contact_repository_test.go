package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ardmere/crmparse/internal/core/domain"
)

func newContactRepo(t *testing.T) (*ContactRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ContactRepository{db: db}, mock, func() { _ = db.Close() }
}

func strPtr(s string) *string {
	return &s
}

func TestFindByEmailReturnsNilWhenMissing(t *testing.T) {
	repo, mock, done := newContactRepo(t)
	defer done()

	mock.ExpectQuery("SELECT contact_id, full_name, title, email, phone, company_id").
		WithArgs("dana@acme.io").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.FindByEmail(context.Background(), "dana@acme.io")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil record, got %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindByEmailScansListColumns(t *testing.T) {
	repo, mock, done := newContactRepo(t)
	defer done()

	touched := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"contact_id", "full_name", "title", "email", "phone", "company_id", "tags", "embeddings", "last_touch_at"}).
		AddRow("c1", "Dana Hall", nil, "dana@acme.io", nil, "co1", []byte(`["vip"]`), []byte(`[]`), touched)
	mock.ExpectQuery("SELECT contact_id, full_name").
		WithArgs("dana@acme.io").
		WillReturnRows(rows)

	got, err := repo.FindByEmail(context.Background(), "dana@acme.io")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if got == nil || got.FullName == nil || *got.FullName != "Dana Hall" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Title != nil {
		t.Fatalf("expected nil title, got %q", *got.Title)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "vip" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if len(got.Embeddings) != 0 {
		t.Fatalf("unexpected embeddings: %v", got.Embeddings)
	}
}

func TestInsertContactSerializesListColumns(t *testing.T) {
	repo, mock, done := newContactRepo(t)
	defer done()

	mock.ExpectExec("INSERT INTO contacts").
		WithArgs("c1", "Dana Hall", nil, "dana@acme.io", nil, nil, []byte(`["vip"]`), []byte(`[]`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := domain.ContactRecord{
		ID:          "c1",
		FullName:    strPtr("Dana Hall"),
		Email:       strPtr("dana@acme.io"),
		Tags:        []string{"vip"},
		LastTouchAt: time.Now().UTC(),
	}
	if err := repo.Insert(context.Background(), record); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMergeProfileKeepsExistingFieldsForNilInputs(t *testing.T) {
	repo, mock, done := newContactRepo(t)
	defer done()

	mock.ExpectExec("UPDATE contacts").
		WithArgs("c1", "Dana Hall", nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	profile := domain.ContactProfile{FullName: strPtr("Dana Hall")}
	if err := repo.MergeProfile(context.Background(), "c1", profile, time.Now().UTC()); err != nil {
		t.Fatalf("MergeProfile() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMergeProfileMissingContact(t *testing.T) {
	repo, mock, done := newContactRepo(t)
	defer done()

	mock.ExpectExec("UPDATE contacts").
		WithArgs("gone", nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MergeProfile(context.Background(), "gone", domain.ContactProfile{}, time.Now().UTC())
	if err == nil || !strings.Contains(err.Error(), "contact not found") {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
