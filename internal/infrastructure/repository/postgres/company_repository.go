package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ardmere/crmparse/internal/core/domain"
)

type CompanyRepository struct {
	db *sql.DB
}

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// FindByName matches case-insensitively and returns (nil, nil) when no
// company row exists.
func (r *CompanyRepository) FindByName(ctx context.Context, name string) (*domain.CompanyRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT company_id, name, domain, linkedin, size, industry, enrichment_json
FROM companies
WHERE LOWER(name) = LOWER($1)
LIMIT 1
`, name)

	var record domain.CompanyRecord
	err := row.Scan(
		&record.ID,
		&record.Name,
		&record.Domain,
		&record.LinkedIn,
		&record.Size,
		&record.Industry,
		&record.Enrichment,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find company by name: %w", err)
	}
	return &record, nil
}

func (r *CompanyRepository) Insert(ctx context.Context, record domain.CompanyRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO companies (company_id, name, domain, linkedin, size, industry, enrichment_json)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		record.ID, record.Name, record.Domain, record.LinkedIn, record.Size, record.Industry, record.Enrichment,
	)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}
