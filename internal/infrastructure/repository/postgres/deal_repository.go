package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ardmere/crmparse/internal/core/domain"
)

type DealRepository struct {
	db *sql.DB
}

func NewDealRepository(db *sql.DB) *DealRepository {
	return &DealRepository{db: db}
}

func (r *DealRepository) Insert(ctx context.Context, record domain.DealRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO deals (deal_id, company_id, contact_id, amount, currency, stage, next_step, close_date, health_score)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.CompanyID, record.ContactID, record.Amount, nullableString(record.Currency),
		record.Stage, record.NextStep, record.CloseDate, record.HealthScore,
	)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	return nil
}

func (r *DealRepository) ListRecent(ctx context.Context, limit int) ([]domain.DealRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT deal_id, company_id, contact_id, amount, COALESCE(currency, ''), stage, next_step, close_date, health_score
FROM deals
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent deals: %w", err)
	}
	defer rows.Close()
	return collectDeals(rows)
}

func (r *DealRepository) ListByCompany(ctx context.Context, companyID string) ([]domain.DealRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT deal_id, company_id, contact_id, amount, COALESCE(currency, ''), stage, next_step, close_date, health_score
FROM deals
WHERE company_id = $1
ORDER BY created_at DESC
`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list deals by company: %w", err)
	}
	defer rows.Close()
	return collectDeals(rows)
}

func collectDeals(rows *sql.Rows) ([]domain.DealRecord, error) {
	out := make([]domain.DealRecord, 0)
	for rows.Next() {
		record, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return out, nil
}

func scanDeal(row rowScanner) (domain.DealRecord, error) {
	var record domain.DealRecord
	var closeDate sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.CompanyID,
		&record.ContactID,
		&record.Amount,
		&record.Currency,
		&record.Stage,
		&record.NextStep,
		&closeDate,
		&record.HealthScore,
	)
	if err != nil {
		return domain.DealRecord{}, err
	}

	if closeDate.Valid {
		date := closeDate.Time.Format(dateLayout)
		record.CloseDate = &date
	}
	return record, nil
}
