package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const dateLayout = "2006-01-02"

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the warehouse tables for the extraction pipeline and
// the agent conversation store.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS contacts (
	contact_id TEXT PRIMARY KEY,
	full_name TEXT,
	title TEXT,
	email TEXT,
	phone TEXT,
	company_id TEXT,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	embeddings JSONB NOT NULL DEFAULT '[]'::jsonb,
	last_touch_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_company ON contacts(company_id);

CREATE TABLE IF NOT EXISTS companies (
	company_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT,
	linkedin TEXT,
	size TEXT,
	industry TEXT,
	enrichment_json JSONB
);

CREATE INDEX IF NOT EXISTS idx_companies_name_lower ON companies(LOWER(name));

-- contact_id and company_id are plain references: the contact and company
-- writes are best-effort and can land after the interaction row.
CREATE TABLE IF NOT EXISTS interactions (
	interaction_id TEXT PRIMARY KEY,
	contact_id TEXT,
	company_id TEXT,
	channel TEXT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	raw_text TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	action_items JSONB NOT NULL DEFAULT '[]'::jsonb,
	next_step TEXT,
	follow_up_date DATE,
	sentiment TEXT,
	risk_flags JSONB NOT NULL DEFAULT '[]'::jsonb,
	owner TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_interactions_occurred_at ON interactions(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_interactions_company ON interactions(company_id);
CREATE INDEX IF NOT EXISTS idx_interactions_follow_up ON interactions(follow_up_date);

CREATE TABLE IF NOT EXISTS deals (
	deal_id TEXT PRIMARY KEY,
	company_id TEXT,
	contact_id TEXT,
	amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT,
	stage TEXT,
	next_step TEXT,
	close_date DATE,
	health_score DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_deals_company ON deals(company_id);

CREATE TABLE IF NOT EXISTS conversations (
	user_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	current_user_turn INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, conversation_id)
);

CREATE TABLE IF NOT EXISTS conversation_messages (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	tool_name TEXT,
	user_turn INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversation_messages_lookup ON conversation_messages(user_id, conversation_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func listJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return []byte("[]"), nil
	}
	return data, nil
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}
