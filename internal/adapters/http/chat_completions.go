package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ardmere/crmparse/internal/core/domain"
)

const defaultCompatModelID = "crmparse-agent-v1"

// listModels advertises the single agent-backed model so stock OpenAI
// clients can discover it.
func (rt *Router) listModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorizeCompat(w, r) {
		return
	}

	modelID := rt.cfg.OpenAICompatModelID
	if modelID == "" {
		modelID = defaultCompatModelID
	}

	writeJSON(w, http.StatusOK, modelListResponse{
		Object: "list",
		Data: []modelObject{
			{
				ID:      modelID,
				Object:  "model",
				OwnedBy: "crmparse",
				Created: time.Now().Unix(),
			},
		},
	})
}

func (rt *Router) chatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !rt.authorizeCompat(w, r) {
		return
	}

	var req chatCompletionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages are required"})
		return
	}

	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = rt.cfg.OpenAICompatModelID
	}
	if modelID == "" {
		modelID = defaultCompatModelID
	}

	lastUser, ok := latestUserMessageContent(req.Messages)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one user message with text content is required"})
		return
	}

	completionID := newCompletionID()
	created := time.Now().Unix()
	userID, conversationID := compatIdentity(req.Metadata)

	result, err := rt.agent.Chat(r.Context(), domain.AgentChatRequest{
		UserID:         userID,
		ConversationID: conversationID,
		Messages:       toAgentInputMessages(req.Messages),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	rt.recordAgentRun(result)
	slog.Info("agent_chat",
		"request_id", requestIDFromContext(r.Context()),
		"endpoint", "chat_completions",
		"user_id", userID,
		"conversation_id", result.ConversationID,
		"iterations", result.Iterations,
		"tools", result.ToolsInvoked,
		"fallback_reason", result.FallbackReason,
	)

	debug := &debugInfo{
		Mode:           "agent",
		ConversationID: result.ConversationID,
		Iterations:     result.Iterations,
		FallbackReason: result.FallbackReason,
	}
	if len(result.ToolsInvoked) > 0 {
		debug.ToolsInvoked = append([]string(nil), result.ToolsInvoked...)
	}

	if req.Stream {
		chunks := buildTextStreamChunks(completionID, created, modelID, result.Answer, rt.cfg.OpenAICompatStreamChunkChars)
		if err := writeSSEChunks(w, chunks); err != nil {
			slog.Error("sse_write_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, buildTextChatCompletionResponse(completionID, created, modelID, lastUser, result.Answer, debug))
}

// authorizeCompat enforces the bearer key on the OpenAI-compatible
// endpoints. An empty configured key leaves them open.
func (rt *Router) authorizeCompat(w http.ResponseWriter, r *http.Request) bool {
	if rt.cfg.OpenAICompatAPIKey == "" {
		return true
	}
	if isAuthorizedBearerHeader(r.Header.Get("Authorization"), rt.cfg.OpenAICompatAPIKey) {
		return true
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	return false
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token == expectedToken
}

func compatIdentity(meta *chatRequestMetadata) (userID, conversationID string) {
	userID = "openai-compat"
	if meta == nil {
		return userID, ""
	}
	if v := strings.TrimSpace(meta.UserID); v != "" {
		userID = v
	}
	return userID, strings.TrimSpace(meta.ConversationID)
}

func toAgentInputMessages(messages []chatMessage) []domain.AgentInputMessage {
	out := make([]domain.AgentInputMessage, 0, len(messages))
	for _, msg := range messages {
		content := extractMessageText(msg)
		if content == "" {
			continue
		}
		out = append(out, domain.AgentInputMessage{
			Role:    msg.Role,
			Content: content,
		})
	}
	return out
}
