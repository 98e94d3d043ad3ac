package domain

import "time"

// ContactRecord is one row of the contacts table. The natural key is the
// email address, matched exactly; the identifier is generated.
type ContactRecord struct {
	ID          string    `json:"contact_id"`
	FullName    *string   `json:"full_name,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	CompanyID   *string   `json:"company_id,omitempty"`
	Tags        []string  `json:"tags"`
	Embeddings  []float64 `json:"embeddings"`
	LastTouchAt time.Time `json:"last_touch_at"`
}

// ContactProfile carries the mergeable contact fields for an upsert update.
// Nil values preserve whatever the row already holds.
type ContactProfile struct {
	FullName *string
	Title    *string
	Phone    *string
}

// CompanyRecord is one row of the companies table. The natural key is the
// name, matched case-insensitively; enrichment fields are never written by
// the extraction pipeline.
type CompanyRecord struct {
	ID         string  `json:"company_id"`
	Name       string  `json:"name"`
	Domain     *string `json:"domain,omitempty"`
	LinkedIn   *string `json:"linkedin,omitempty"`
	Size       *string `json:"size,omitempty"`
	Industry   *string `json:"industry,omitempty"`
	Enrichment *string `json:"enrichment_json,omitempty"`
}

// InteractionRecord is one row of the append-only interactions table.
type InteractionRecord struct {
	ID           string     `json:"interaction_id"`
	ContactID    *string    `json:"contact_id,omitempty"`
	CompanyID    *string    `json:"company_id,omitempty"`
	Channel      Channel    `json:"channel"`
	OccurredAt   time.Time  `json:"occurred_at"`
	RawText      string     `json:"raw_text,omitempty"`
	Summary      string     `json:"summary"`
	ActionItems  []string   `json:"action_items"`
	NextStep     *string    `json:"next_step,omitempty"`
	FollowUpDate *string    `json:"follow_up_date,omitempty"`
	Sentiment    *Sentiment `json:"sentiment,omitempty"`
	RiskFlags    []string   `json:"risk_flags"`
	Owner        *string    `json:"owner,omitempty"`
	Confidence   float64    `json:"confidence"`
}

// DealRecord is one row of the deals table, created only when extraction
// found a positive deal value. Stage, close date and health score are left
// unset by this pipeline.
type DealRecord struct {
	ID          string   `json:"deal_id"`
	CompanyID   *string  `json:"company_id,omitempty"`
	ContactID   *string  `json:"contact_id,omitempty"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	Stage       *string  `json:"stage,omitempty"`
	NextStep    *string  `json:"next_step,omitempty"`
	CloseDate   *string  `json:"close_date,omitempty"`
	HealthScore *float64 `json:"health_score,omitempty"`
}

// CustomerSummary is the per-company rollup served to the chat agent and
// the MCP tools.
type CustomerSummary struct {
	Company      *CompanyRecord      `json:"company,omitempty"`
	Contacts     []ContactRecord     `json:"contacts"`
	Interactions []InteractionRecord `json:"interactions"`
	Deals        []DealRecord        `json:"deals"`
	TotalAmount  float64             `json:"total_amount"`
}

// PipelineReport is the material of one XLSX export.
type PipelineReport struct {
	GeneratedAt  time.Time           `json:"generated_at"`
	Interactions []InteractionRecord `json:"interactions"`
	Deals        []DealRecord        `json:"deals"`
	Contacts     []ContactRecord     `json:"contacts"`
}

// TableColumn and TableSchema describe warehouse tables to the agent's
// discovery tools.
type TableColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

type TableSchema struct {
	Name    string        `json:"name"`
	Columns []TableColumn `json:"columns"`
}
