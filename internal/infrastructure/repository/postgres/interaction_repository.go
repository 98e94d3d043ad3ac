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

type InteractionRepository struct {
	db *sql.DB
}

func NewInteractionRepository(db *sql.DB) *InteractionRepository {
	return &InteractionRepository{db: db}
}

func (r *InteractionRepository) Insert(ctx context.Context, record domain.InteractionRecord) error {
	actionItemsJSON, err := listJSON(record.ActionItems)
	if err != nil {
		return fmt.Errorf("marshal action items: %w", err)
	}
	riskFlagsJSON, err := listJSON(record.RiskFlags)
	if err != nil {
		return fmt.Errorf("marshal risk flags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO interactions (
	interaction_id, contact_id, company_id, channel, occurred_at, raw_text, summary, action_items, next_step, follow_up_date, sentiment, risk_flags, owner, confidence
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		record.ID, record.ContactID, record.CompanyID, string(record.Channel), record.OccurredAt, record.RawText,
		record.Summary, actionItemsJSON, record.NextStep, record.FollowUpDate, record.Sentiment, riskFlagsJSON,
		record.Owner, record.Confidence,
	)
	if err != nil {
		return fmt.Errorf("insert interaction row: %w", err)
	}
	return nil
}

func (r *InteractionRepository) GetByID(ctx context.Context, id string) (*domain.InteractionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT interaction_id, contact_id, company_id, channel, occurred_at, raw_text, summary, action_items, next_step, follow_up_date, sentiment, risk_flags, owner, confidence
FROM interactions
WHERE interaction_id = $1
`, id)

	record, err := scanInteraction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", domain.ErrInteractionNotFound, id)
		}
		return nil, fmt.Errorf("get interaction by id: %w", err)
	}
	return &record, nil
}

func (r *InteractionRepository) ListRecent(ctx context.Context, limit int) ([]domain.InteractionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT interaction_id, contact_id, company_id, channel, occurred_at, raw_text, summary, action_items, next_step, follow_up_date, sentiment, risk_flags, owner, confidence
FROM interactions
ORDER BY occurred_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent interactions: %w", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

func (r *InteractionRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]domain.InteractionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT interaction_id, contact_id, company_id, channel, occurred_at, raw_text, summary, action_items, next_step, follow_up_date, sentiment, risk_flags, owner, confidence
FROM interactions
WHERE company_id = $1
ORDER BY occurred_at DESC
LIMIT $2
`, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions by company: %w", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

func (r *InteractionRepository) ListDueFollowUps(ctx context.Context, by time.Time, limit int) ([]domain.InteractionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT interaction_id, contact_id, company_id, channel, occurred_at, raw_text, summary, action_items, next_step, follow_up_date, sentiment, risk_flags, owner, confidence
FROM interactions
WHERE follow_up_date IS NOT NULL AND follow_up_date <= $1
ORDER BY follow_up_date ASC
LIMIT $2
`, by.UTC().Format(dateLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("query due follow-ups: %w", err)
	}
	defer rows.Close()
	return collectInteractions(rows)
}

func collectInteractions(rows *sql.Rows) ([]domain.InteractionRecord, error) {
	out := make([]domain.InteractionRecord, 0)
	for rows.Next() {
		record, err := scanInteraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}

func scanInteraction(row rowScanner) (domain.InteractionRecord, error) {
	var record domain.InteractionRecord
	var channel string
	var actionItemsRaw, riskFlagsRaw []byte
	var followUp sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.ContactID,
		&record.CompanyID,
		&channel,
		&record.OccurredAt,
		&record.RawText,
		&record.Summary,
		&actionItemsRaw,
		&record.NextStep,
		&followUp,
		&record.Sentiment,
		&riskFlagsRaw,
		&record.Owner,
		&record.Confidence,
	)
	if err != nil {
		return domain.InteractionRecord{}, err
	}

	record.Channel = domain.Channel(channel)
	if followUp.Valid {
		date := followUp.Time.Format(dateLayout)
		record.FollowUpDate = &date
	}
	if err := json.Unmarshal(actionItemsRaw, &record.ActionItems); err != nil {
		return domain.InteractionRecord{}, fmt.Errorf("unmarshal action items: %w", err)
	}
	if err := json.Unmarshal(riskFlagsRaw, &record.RiskFlags); err != nil {
		return domain.InteractionRecord{}, fmt.Errorf("unmarshal risk flags: %w", err)
	}
	return record, nil
}
