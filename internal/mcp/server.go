// Package mcp provides a Model Context Protocol server over the CRM
// warehouse.
//
// It exposes the same read-only toolset the chat agent plans against
// (list_tables, table_schema, run_query, customer_summary, follow_ups_due,
// current_time) as MCP tools, plus the table list and due follow-ups as MCP
// resources, so clients like Claude Desktop and Cursor can work the
// warehouse directly over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ardmere/crmparse/internal/core/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const defaultQueryRowLimit = 100

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Catalog       ports.WarehouseCatalog
	Insights      ports.InsightsService
	Version       string // version string for MCP server info
	QueryRowLimit int    // cap on rows returned per run_query call
}

// NewServer creates a configured MCP server with all warehouse tools and
// resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	rowLimit := cfg.QueryRowLimit
	if rowLimit <= 0 {
		rowLimit = defaultQueryRowLimit
	}

	s := server.NewMCPServer(
		"crmparse",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	// Register tools
	registerListTablesTool(s, cfg.Catalog)
	registerTableSchemaTool(s, cfg.Catalog)
	registerRunQueryTool(s, cfg.Catalog, rowLimit)
	registerCustomerSummaryTool(s, cfg.Insights)
	registerFollowUpsDueTool(s, cfg.Insights)
	registerCurrentTimeTool(s)

	// Register resources
	registerTablesResource(s, cfg.Catalog)
	registerFollowUpsResource(s, cfg.Insights)

	return s
}

// --- Tools ---

func registerListTablesTool(s *server.MCPServer, catalog ports.WarehouseCatalog) {
	tool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the CRM warehouse tables available to run_query. Call this before table_schema or run_query instead of guessing table names."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tables, err := catalog.Tables(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list tables error: %v", err)), nil
		}

		result := map[string]interface{}{
			"tables": tables,
			"count":  len(tables),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerTableSchemaTool(s *server.MCPServer, catalog ports.WarehouseCatalog) {
	tool := mcp.NewTool("table_schema",
		mcp.WithDescription("Describe the columns of one warehouse table: name, SQL type, and nullability."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("Table name as returned by list_tables (e.g. 'interactions', 'deals')"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table is required"), nil
		}
		table = strings.TrimSpace(table)
		if table == "" {
			return mcp.NewToolResultError("table cannot be empty"), nil
		}

		schema, err := catalog.TableSchema(ctx, table)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("table schema error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(schema, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerRunQueryTool(s *server.MCPServer, catalog ports.WarehouseCatalog, rowLimit int) {
	tool := mcp.NewTool("run_query",
		mcp.WithDescription(fmt.Sprintf("Run a single read-only SELECT statement against the CRM warehouse. Anything other than SELECT is rejected, and at most %d rows are returned.", rowLimit)),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("SELECT statement to execute"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of rows (default and cap: %d)", rowLimit)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}
		if strings.TrimSpace(query) == "" {
			return mcp.NewToolResultError("query cannot be empty"), nil
		}

		limit := rowLimit
		if l, err := req.RequireFloat("limit"); err == nil {
			if v := int(l); v > 0 && v < rowLimit {
				limit = v
			}
		}

		rows, err := catalog.Query(ctx, query, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run query error: %v", err)), nil
		}

		result := map[string]interface{}{
			"query":     query,
			"row_count": len(rows),
			"data":      rows,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCustomerSummaryTool(s *server.MCPServer, insights ports.InsightsService) {
	tool := mcp.NewTool("customer_summary",
		mcp.WithDescription("Roll up one customer by company name: company row, contacts, recent interactions, deals, and total open deal amount."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("company",
			mcp.Required(),
			mcp.Description("Company name to summarize (case-insensitive match)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		company, err := req.RequireString("company")
		if err != nil {
			return mcp.NewToolResultError("company is required"), nil
		}
		company = strings.TrimSpace(company)
		if company == "" {
			return mcp.NewToolResultError("company cannot be empty"), nil
		}

		summary, err := insights.CustomerSummary(ctx, company)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("customer summary error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(summary, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerFollowUpsDueTool(s *server.MCPServer, insights ports.InsightsService) {
	tool := mcp.NewTool("follow_ups_due",
		mcp.WithDescription("List interactions whose follow-up date falls inside a look-ahead window. Useful for 'what is due this week' questions."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("days",
			mcp.Description("Look-ahead window in days (default: 7)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of follow-ups to return (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		days := 7
		if d, err := req.RequireFloat("days"); err == nil && d > 0 {
			days = int(d)
		}

		limit := 20
		if l, err := req.RequireFloat("limit"); err == nil && l > 0 {
			limit = int(l)
			if limit > 100 {
				limit = 100
			}
		}

		by := time.Now().UTC().AddDate(0, 0, days)
		items, err := insights.DueFollowUps(ctx, by, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("follow ups due error: %v", err)), nil
		}

		result := map[string]interface{}{
			"due_by":     by.Format("2006-01-02"),
			"count":      len(items),
			"follow_ups": items,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCurrentTimeTool(s *server.MCPServer) {
	tool := mcp.NewTool("current_time",
		mcp.WithDescription("Get the current UTC time. Use it to resolve relative dates like 'this quarter' before querying."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := map[string]string{
			"current_time": time.Now().UTC().Format("2006-01-02 15:04:05"),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

// --- Resources ---

func registerTablesResource(s *server.MCPServer, catalog ports.WarehouseCatalog) {
	resource := mcp.NewResource(
		"crm://tables",
		"Warehouse Tables",
		mcp.WithResourceDescription("Names of the CRM warehouse tables available to run_query."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		tables, err := catalog.Tables(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing tables: %w", err)
		}

		payload := map[string]interface{}{
			"tables": tables,
			"count":  len(tables),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func registerFollowUpsResource(s *server.MCPServer, insights ports.InsightsService) {
	resource := mcp.NewResource(
		"crm://follow-ups",
		"Due Follow-Ups",
		mcp.WithResourceDescription("Interactions with a follow-up due inside the next seven days."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		by := time.Now().UTC().AddDate(0, 0, 7)
		items, err := insights.DueFollowUps(ctx, by, 20)
		if err != nil {
			return nil, fmt.Errorf("listing due follow-ups: %w", err)
		}

		// Build compact representation
		type dueFollowUp struct {
			InteractionID string `json:"interaction_id"`
			CompanyID     string `json:"company_id,omitempty"`
			Summary       string `json:"summary"`
			NextStep      string `json:"next_step,omitempty"`
			FollowUpDate  string `json:"follow_up_date,omitempty"`
			Owner         string `json:"owner,omitempty"`
		}
		due := make([]dueFollowUp, 0, len(items))
		for _, item := range items {
			due = append(due, dueFollowUp{
				InteractionID: item.ID,
				CompanyID:     strOrEmpty(item.CompanyID),
				Summary:       item.Summary,
				NextStep:      strOrEmpty(item.NextStep),
				FollowUpDate:  strOrEmpty(item.FollowUpDate),
				Owner:         strOrEmpty(item.Owner),
			})
		}

		data, _ := json.MarshalIndent(due, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// --- Helpers ---

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
