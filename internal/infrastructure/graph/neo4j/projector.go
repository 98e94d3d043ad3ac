package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ardmere/crmparse/internal/core/domain"
)

const (
	mergeInteractionCypher = `
MERGE (i:Interaction {id: $id})
SET i.channel = $channel,
    i.occurred_at = datetime($occurred_at),
    i.summary = $summary,
    i.sentiment = $sentiment,
    i.confidence = $confidence`

	mergeContactCypher = `
MERGE (c:Contact {id: $contact_id})
SET c.name = coalesce($name, c.name),
    c.email = coalesce($email, c.email)
WITH c
MATCH (i:Interaction {id: $interaction_id})
MERGE (c)-[:TOUCHED]->(i)`

	mergeCompanyCypher = `
MERGE (co:Company {id: $company_id})
SET co.name = coalesce($name, co.name)
WITH co
MATCH (i:Interaction {id: $interaction_id})
MERGE (i)-[:AT]->(co)`

	mergeEmploymentCypher = `
MATCH (c:Contact {id: $contact_id})
MATCH (co:Company {id: $company_id})
MERGE (c)-[:WORKS_AT]->(co)`

	mergeDealCypher = `
MERGE (d:Deal {id: $deal_id})
SET d.amount = $amount,
    d.currency = $currency
WITH d
MATCH (co:Company {id: $company_id})
MERGE (d)-[:WITH]->(co)`
)

// Projector mirrors stored interactions into a Neo4j relationship graph.
// Callers treat projection as best-effort and log failures instead of
// aborting the save.
type Projector struct {
	driver neo4j.DriverWithContext
}

func New(uri, username, password string) (*Projector, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Projector{driver: driver}, nil
}

func (p *Projector) ProjectInteraction(ctx context.Context, interaction domain.InteractionRecord, contact *domain.Contact, companyName *string, deal *domain.DealRecord) error {
	session := p.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, mergeInteractionCypher, interactionParams(interaction)); err != nil {
			return nil, fmt.Errorf("merge interaction node: %w", err)
		}
		if interaction.ContactID != nil {
			if _, err := tx.Run(ctx, mergeContactCypher, contactParams(interaction, contact)); err != nil {
				return nil, fmt.Errorf("merge contact node: %w", err)
			}
		}
		if interaction.CompanyID != nil {
			if _, err := tx.Run(ctx, mergeCompanyCypher, companyParams(interaction, companyName)); err != nil {
				return nil, fmt.Errorf("merge company node: %w", err)
			}
		}
		if interaction.ContactID != nil && interaction.CompanyID != nil {
			params := map[string]any{
				"contact_id": *interaction.ContactID,
				"company_id": *interaction.CompanyID,
			}
			if _, err := tx.Run(ctx, mergeEmploymentCypher, params); err != nil {
				return nil, fmt.Errorf("merge employment edge: %w", err)
			}
		}
		if deal != nil && deal.CompanyID != nil {
			if _, err := tx.Run(ctx, mergeDealCypher, dealParams(*deal)); err != nil {
				return nil, fmt.Errorf("merge deal edge: %w", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("project interaction %s: %w", interaction.ID, err)
	}
	return nil
}

func (p *Projector) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

func interactionParams(interaction domain.InteractionRecord) map[string]any {
	var sentiment any
	if interaction.Sentiment != nil {
		sentiment = string(*interaction.Sentiment)
	}
	return map[string]any{
		"id":          interaction.ID,
		"channel":     string(interaction.Channel),
		"occurred_at": interaction.OccurredAt.UTC().Format(time.RFC3339),
		"summary":     interaction.Summary,
		"sentiment":   sentiment,
		"confidence":  interaction.Confidence,
	}
}

func contactParams(interaction domain.InteractionRecord, contact *domain.Contact) map[string]any {
	var name, email any
	if contact != nil {
		if contact.FullName != nil {
			name = *contact.FullName
		}
		if contact.Email != nil {
			email = *contact.Email
		}
	}
	return map[string]any{
		"contact_id":     *interaction.ContactID,
		"interaction_id": interaction.ID,
		"name":           name,
		"email":          email,
	}
}

func companyParams(interaction domain.InteractionRecord, companyName *string) map[string]any {
	var name any
	if companyName != nil {
		name = *companyName
	}
	return map[string]any{
		"company_id":     *interaction.CompanyID,
		"interaction_id": interaction.ID,
		"name":           name,
	}
}

func dealParams(deal domain.DealRecord) map[string]any {
	return map[string]any{
		"deal_id":    deal.ID,
		"company_id": *deal.CompanyID,
		"amount":     deal.Amount,
		"currency":   deal.Currency,
	}
}
