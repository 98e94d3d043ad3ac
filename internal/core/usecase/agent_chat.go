package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ardmere/crmparse/internal/core/domain"
	"github.com/ardmere/crmparse/internal/core/ports"
)

const (
	agentToolListTables      = "list_tables"
	agentToolTableSchema     = "table_schema"
	agentToolRunQuery        = "run_query"
	agentToolCustomerSummary = "customer_summary"
	agentToolFollowUpsDue    = "follow_ups_due"
	agentToolCurrentTime     = "current_time"
)

const agentSystemPrompt = `You are the planning component of a CRM assistant. Your only job is to
answer questions about CRM data and the current time.

Tools operate on the CRM warehouse (contacts, companies, interactions,
deals). Discover tables with list_tables and table_schema before writing a
query; do not guess table or column names. run_query accepts a single
SELECT statement.

You MUST decline questions unrelated to CRM data or the current time, such
as general knowledge, trivia or math. Decline with a final answer like:
"I'm sorry, I am a CRM assistant and can only help with questions about
our customer data or the current time."

Return ONLY a valid JSON object with one step.
Schema:
{"type":"tool","tool":"list_tables","input":{}}
or {"type":"tool","tool":"table_schema","input":{"table":"interactions"}}
or {"type":"tool","tool":"run_query","input":{"query":"SELECT ...","limit":100}}
or {"type":"tool","tool":"customer_summary","input":{"company":"Acme"}}
or {"type":"tool","tool":"follow_ups_due","input":{"days":7,"limit":20}}
or {"type":"tool","tool":"current_time","input":{}}
or {"type":"final","answer":"..."}

When a tool output contains an "error" key, report that error in the final
answer. Summarize data conversationally in the final answer; never invent
rows you did not read from a tool.`

type AgentChatUseCase struct {
	model         ports.ChatModel
	catalog       ports.WarehouseCatalog
	insights      ports.InsightsService
	conversations ports.ConversationStore
	limits        domain.AgentLimits
	now           func() time.Time
}

func NewAgentChatUseCase(
	model ports.ChatModel,
	catalog ports.WarehouseCatalog,
	insights ports.InsightsService,
	conversations ports.ConversationStore,
	limits domain.AgentLimits,
) *AgentChatUseCase {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 6
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 90 * time.Second
	}
	if limits.PlannerTimeout <= 0 {
		limits.PlannerTimeout = 20 * time.Second
	}
	if limits.ToolTimeout <= 0 {
		limits.ToolTimeout = 30 * time.Second
	}
	if limits.HistoryMessages <= 0 {
		limits.HistoryMessages = 12
	}
	if limits.QueryRowLimit <= 0 {
		limits.QueryRowLimit = 100
	}

	return &AgentChatUseCase{
		model:         model,
		catalog:       catalog,
		insights:      insights,
		conversations: conversations,
		limits:        limits,
		now:           time.Now,
	}
}

func (uc *AgentChatUseCase) Chat(ctx context.Context, req domain.AgentChatRequest) (*domain.AgentRunResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent chat", fmt.Errorf("user_id is required"))
	}

	lastUserMessage, ok := latestUserInput(req.Messages)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "agent chat", fmt.Errorf("at least one user message is required"))
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	if _, err := uc.conversations.EnsureConversation(ctx, userID, conversationID); err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	history, err := uc.conversations.ListRecentMessages(ctx, userID, conversationID, uc.limits.HistoryMessages)
	if err != nil {
		return nil, fmt.Errorf("load conversation history: %w", err)
	}

	turn, err := uc.conversations.NextUserTurn(ctx, userID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("next user turn: %w", err)
	}

	if err := uc.conversations.AppendMessage(ctx, domain.ConversationMessage{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Role:           "user",
		Content:        lastUserMessage,
		UserTurn:       turn,
		CreatedAt:      uc.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}

	loopCtx, cancel := context.WithTimeout(ctx, uc.limits.Timeout)
	defer cancel()

	scratchpad := make([]string, 0, uc.limits.MaxIterations)
	toolEvents := make([]domain.AgentToolEvent, 0, uc.limits.MaxIterations)
	toolsInvoked := make([]string, 0, uc.limits.MaxIterations)
	toolSet := make(map[string]struct{})
	finalAnswer := ""
	fallbackReason := ""
	iterations := 0

	for i := 1; i <= uc.limits.MaxIterations; i++ {
		if loopCtx.Err() != nil {
			fallbackReason = "timeout"
			break
		}

		iterations = i
		plannerCtx, plannerCancel := context.WithTimeout(loopCtx, uc.limits.PlannerTimeout)
		planRaw, err := uc.model.CompleteJSON(plannerCtx, agentSystemPrompt, buildPlannerPrompt(lastUserMessage, history, scratchpad))
		plannerCancel()
		if err != nil {
			if isAgentTimeoutError(err) {
				fallbackReason = "timeout"
			} else {
				fallbackReason = "planner_error"
			}
			break
		}

		step, err := parseAgentStep(planRaw)
		if err != nil {
			repairCtx, repairCancel := context.WithTimeout(loopCtx, uc.limits.PlannerTimeout)
			repairedRaw, repairErr := uc.model.CompleteJSON(repairCtx, agentSystemPrompt, buildPlannerRepairPrompt(planRaw))
			repairCancel()
			if repairErr != nil {
				if isAgentTimeoutError(repairErr) {
					fallbackReason = "timeout"
				} else {
					fallbackReason = "planner_invalid_json"
				}
				break
			}
			step, err = parseAgentStep(repairedRaw)
			if err != nil {
				fallbackReason = "planner_invalid_json"
				break
			}
		}

		switch step.Type {
		case "final":
			finalAnswer = strings.TrimSpace(step.Answer)
			if finalAnswer == "" {
				finalAnswer = "I could not produce a final answer from the current context."
				fallbackReason = "empty_final_answer"
			}
		case "tool":
			toolCtx, toolCancel := context.WithTimeout(loopCtx, uc.limits.ToolTimeout)
			event, execErr := uc.executeTool(toolCtx, step)
			toolCancel()
			if execErr != nil {
				if isAgentTimeoutError(execErr) {
					fallbackReason = "timeout"
				}
				errorPayload, _ := json.Marshal(map[string]string{"error": execErr.Error()})
				event = domain.AgentToolEvent{
					Tool:   step.Tool,
					Status: "error",
					Output: string(errorPayload),
				}
			}
			toolEvents = append(toolEvents, event)
			if event.Tool != "" {
				if _, seen := toolSet[event.Tool]; !seen {
					toolSet[event.Tool] = struct{}{}
					toolsInvoked = append(toolsInvoked, event.Tool)
				}
			}
			scratchpad = append(scratchpad, fmt.Sprintf("%s:%s", event.Tool, event.Output))
			if fallbackReason == "timeout" {
				break
			}
		default:
			fallbackReason = "unsupported_step_type"
		}

		if finalAnswer != "" || fallbackReason != "" {
			break
		}
	}

	if fallbackReason == "" && finalAnswer == "" {
		fallbackReason = "max_iterations"
	}
	if finalAnswer == "" {
		finalAnswer = "I reached the current execution limits. Please refine the request and try again."
	}

	for _, event := range toolEvents {
		if err := uc.conversations.AppendMessage(ctx, domain.ConversationMessage{
			ID:             uuid.NewString(),
			UserID:         userID,
			ConversationID: conversationID,
			Role:           "tool",
			Content:        event.Output,
			ToolName:       event.Tool,
			UserTurn:       turn,
			CreatedAt:      uc.now().UTC(),
		}); err != nil {
			return nil, fmt.Errorf("append tool message: %w", err)
		}
	}

	if err := uc.conversations.AppendMessage(ctx, domain.ConversationMessage{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        finalAnswer,
		UserTurn:       turn,
		CreatedAt:      uc.now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	return &domain.AgentRunResult{
		ConversationID: conversationID,
		Answer:         finalAnswer,
		Iterations:     iterations,
		ToolsInvoked:   toolsInvoked,
		FallbackReason: fallbackReason,
		ToolEvents:     toolEvents,
	}, nil
}

func isAgentTimeoutError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func latestUserInput(messages []domain.AgentInputMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(strings.TrimSpace(messages[i].Role), "user") {
			content := strings.TrimSpace(messages[i].Content)
			if content != "" {
				return content, true
			}
		}
	}
	return "", false
}

func parseAgentStep(raw string) (domain.AgentPlanStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.AgentPlanStep{}, fmt.Errorf("empty planner response")
	}
	var step domain.AgentPlanStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return domain.AgentPlanStep{}, fmt.Errorf("unmarshal planner json: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	step.Tool = strings.ToLower(strings.TrimSpace(step.Tool))
	return step, nil
}

func buildPlannerPrompt(userMessage string, history []domain.ConversationMessage, scratchpad []string) string {
	historyLines := make([]string, 0, len(history))
	for _, msg := range history {
		role := strings.TrimSpace(msg.Role)
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		historyLines = append(historyLines, fmt.Sprintf("%s: %s", role, content))
	}
	if len(historyLines) == 0 {
		historyLines = append(historyLines, "(empty)")
	}
	if len(scratchpad) == 0 {
		scratchpad = append(scratchpad, "(no tool outputs yet)")
	}

	return fmt.Sprintf(`Conversation history:
%s

Scratchpad with previous tool outputs:
%s

Current user request:
%s
`, strings.Join(historyLines, "\n"), strings.Join(scratchpad, "\n"), userMessage)
}

func buildPlannerRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into a valid JSON object for this schema:
{"type":"tool","tool":"<tool name>","input":{...}}
or {"type":"final","answer":"..."}
Return only JSON.
Text:
%s`, raw)
}

func (uc *AgentChatUseCase) executeTool(ctx context.Context, step domain.AgentPlanStep) (domain.AgentToolEvent, error) {
	switch step.Tool {
	case agentToolListTables:
		tables, err := uc.catalog.Tables(ctx)
		if err != nil {
			return domain.AgentToolEvent{}, fmt.Errorf("list tables: %w", err)
		}
		payload, _ := json.Marshal(map[string]any{
			"tables": tables,
			"count":  len(tables),
		})
		return domain.AgentToolEvent{Tool: agentToolListTables, Status: "ok", Output: string(payload)}, nil
	case agentToolTableSchema:
		table := strings.TrimSpace(stringInput(step.Input, "table", ""))
		if table == "" {
			return domain.AgentToolEvent{}, fmt.Errorf("table_schema requires table")
		}
		schema, err := uc.catalog.TableSchema(ctx, table)
		if err != nil {
			return domain.AgentToolEvent{}, fmt.Errorf("table schema: %w", err)
		}
		payload, _ := json.Marshal(schema)
		return domain.AgentToolEvent{Tool: agentToolTableSchema, Status: "ok", Output: string(payload)}, nil
	case agentToolRunQuery:
		query := strings.TrimSpace(stringInput(step.Input, "query", ""))
		if query == "" {
			return domain.AgentToolEvent{}, fmt.Errorf("run_query requires query")
		}
		limit := intInput(step.Input, "limit", uc.limits.QueryRowLimit)
		rows, err := uc.catalog.Query(ctx, query, limit)
		if err != nil {
			return domain.AgentToolEvent{}, fmt.Errorf("run query: %w", err)
		}
		payload, _ := json.Marshal(map[string]any{
			"query":     query,
			"row_count": len(rows),
			"data":      rows,
		})
		return domain.AgentToolEvent{Tool: agentToolRunQuery, Status: "ok", Output: string(payload)}, nil
	case agentToolCustomerSummary:
		company := strings.TrimSpace(stringInput(step.Input, "company", ""))
		if company == "" {
			return domain.AgentToolEvent{}, fmt.Errorf("customer_summary requires company")
		}
		summary, err := uc.insights.CustomerSummary(ctx, company)
		if err != nil {
			return domain.AgentToolEvent{}, fmt.Errorf("customer summary: %w", err)
		}
		payload, _ := json.Marshal(summary)
		return domain.AgentToolEvent{Tool: agentToolCustomerSummary, Status: "ok", Output: string(payload)}, nil
	case agentToolFollowUpsDue:
		days := intInput(step.Input, "days", 7)
		limit := intInput(step.Input, "limit", 20)
		by := uc.now().UTC().AddDate(0, 0, days)
		items, err := uc.insights.DueFollowUps(ctx, by, limit)
		if err != nil {
			return domain.AgentToolEvent{}, fmt.Errorf("follow ups due: %w", err)
		}
		payload, _ := json.Marshal(map[string]any{
			"due_by":     by.Format("2006-01-02"),
			"count":      len(items),
			"follow_ups": items,
		})
		return domain.AgentToolEvent{Tool: agentToolFollowUpsDue, Status: "ok", Output: string(payload)}, nil
	case agentToolCurrentTime:
		payload, _ := json.Marshal(map[string]string{
			"current_time": uc.now().UTC().Format("2006-01-02 15:04:05"),
		})
		return domain.AgentToolEvent{Tool: agentToolCurrentTime, Status: "ok", Output: string(payload)}, nil
	default:
		return domain.AgentToolEvent{}, fmt.Errorf("unsupported tool: %s", step.Tool)
	}
}

func stringInput(input map[string]any, key, fallback string) string {
	if input == nil {
		return fallback
	}
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func intInput(input map[string]any, key string, fallback int) int {
	if input == nil {
		return fallback
	}
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case float64:
		return int(typed)
	case int:
		return typed
	case int64:
		return int(typed)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return fallback
		}
		return n
	default:
		return fallback
	}
}
