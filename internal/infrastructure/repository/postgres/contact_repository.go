package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
)

type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*domain.ContactRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT contact_id, full_name, title, email, phone, company_id, tags, embeddings, last_touch_at
FROM contacts
WHERE email = $1
ORDER BY last_touch_at DESC
LIMIT 1
`, email)

	record, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find contact by email: %w", err)
	}
	return &record, nil
}

func (r *ContactRepository) Insert(ctx context.Context, record domain.ContactRecord) error {
	tagsJSON, err := listJSON(record.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	embeddingsJSON, err := listJSON(record.Embeddings)
	if err != nil {
		return fmt.Errorf("marshal embeddings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO contacts (contact_id, full_name, title, email, phone, company_id, tags, embeddings, last_touch_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.FullName, record.Title, record.Email, record.Phone, record.CompanyID,
		tagsJSON, embeddingsJSON, record.LastTouchAt,
	)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// MergeProfile fills missing profile fields on an existing row. Nil fields
// keep whatever the row already holds.
func (r *ContactRepository) MergeProfile(ctx context.Context, id string, profile domain.ContactProfile, touchedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE contacts
SET full_name = COALESCE($2, full_name),
	title = COALESCE($3, title),
	phone = COALESCE($4, phone),
	last_touch_at = $5
WHERE contact_id = $1
`, id, profile.FullName, profile.Title, profile.Phone, touchedAt)
	if err != nil {
		return fmt.Errorf("merge contact profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("merge contact rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("contact not found: id=%s", id)
	}
	return nil
}

func (r *ContactRepository) ListRecent(ctx context.Context, limit int) ([]domain.ContactRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT contact_id, full_name, title, email, phone, company_id, tags, embeddings, last_touch_at
FROM contacts
ORDER BY last_touch_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent contacts: %w", err)
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (r *ContactRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.ContactRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT contact_id, full_name, title, email, phone, company_id, tags, embeddings, last_touch_at
FROM contacts
WHERE company_id = $1
ORDER BY last_touch_at DESC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list contacts by company: %w", err)
	}
	defer rows.Close()
	return collectContacts(rows)
}

func collectContacts(rows *sql.Rows) ([]domain.ContactRecord, error) {
	out := make([]domain.ContactRecord, 0)
	for rows.Next() {
		record, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return out, nil
}

func scanContact(row rowScanner) (domain.ContactRecord, error) {
	var record domain.ContactRecord
	var tagsRaw, embeddingsRaw []byte

	err := row.Scan(
		&record.ID,
		&record.FullName,
		&record.Title,
		&record.Email,
		&record.Phone,
		&record.CompanyID,
		&tagsRaw,
		&embeddingsRaw,
		&record.LastTouchAt,
	)
	if err != nil {
		return domain.ContactRecord{}, err
	}

	if err := json.Unmarshal(tagsRaw, &record.Tags); err != nil {
		return domain.ContactRecord{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	if err := json.Unmarshal(embeddingsRaw, &record.Embeddings); err != nil {
		return domain.ContactRecord{}, fmt.Errorf("unmarshal embeddings: %w", err)
	}
	return record, nil
}
