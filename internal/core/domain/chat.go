package domain

import "time"

type Conversation struct {
	UserID          string    `json:"user_id"`
	ConversationID  string    `json:"conversation_id"`
	CurrentUserTurn int       `json:"current_user_turn"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ConversationMessage struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ToolName       string    `json:"tool_name,omitempty"`
	UserTurn       int       `json:"user_turn"`
	CreatedAt      time.Time `json:"created_at"`
}

type AgentLimits struct {
	MaxIterations   int           `json:"max_iterations"`
	Timeout         time.Duration `json:"timeout"`
	PlannerTimeout  time.Duration `json:"planner_timeout"`
	ToolTimeout     time.Duration `json:"tool_timeout"`
	HistoryMessages int           `json:"history_messages"`
	QueryRowLimit   int           `json:"query_row_limit"`
}

type AgentInputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AgentChatRequest struct {
	UserID         string              `json:"user_id"`
	ConversationID string              `json:"conversation_id,omitempty"`
	Messages       []AgentInputMessage `json:"messages"`
}

type AgentToolEvent struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
	Output string `json:"output"`
}

type AgentRunResult struct {
	ConversationID string           `json:"conversation_id"`
	Answer         string           `json:"answer"`
	Iterations     int              `json:"iterations"`
	ToolsInvoked   []string         `json:"tools_invoked,omitempty"`
	FallbackReason string           `json:"fallback_reason,omitempty"`
	ToolEvents     []AgentToolEvent `json:"tool_events,omitempty"`
}

type AgentPlanStep struct {
	Type   string         `json:"type"`
	Tool   string         `json:"tool,omitempty"`
	Answer string         `json:"answer,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
}
