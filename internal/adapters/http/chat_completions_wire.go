package httpadapter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type chatCompletionsRequest struct {
	Model    string               `json:"model"`
	Messages []chatMessage        `json:"messages"`
	Stream   bool                 `json:"stream"`
	Metadata *chatRequestMetadata `json:"metadata,omitempty"`
}

// chatRequestMetadata carries the caller identity fields this server
// understands on top of the stock OpenAI request shape.
type chatRequestMetadata struct {
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// chatMessage accepts both plain-string content and the part-list form
// some OpenAI clients send.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content,omitempty"`
}

type chatResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   *usage                 `json:"usage,omitempty"`
	Debug   *debugInfo             `json:"debug,omitempty"`
}

type chatCompletionChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason *string             `json:"finish_reason"`
}

type chatCompletionChunk struct {
	ID      string                      `json:"id"`
	Object  string                      `json:"object"`
	Created int64                       `json:"created"`
	Model   string                      `json:"model"`
	Choices []chatCompletionChunkChoice `json:"choices"`
}

type chatCompletionChunkChoice struct {
	Index        int              `json:"index"`
	Delta        chatMessageDelta `json:"delta"`
	FinishReason *string          `json:"finish_reason"`
}

type chatMessageDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type debugInfo struct {
	Mode           string   `json:"mode,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Iterations     int      `json:"iterations,omitempty"`
	ToolsInvoked   []string `json:"tools_invoked,omitempty"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}

type modelListResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

type modelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created,omitempty"`
}

func newCompletionID() string {
	return fmt.Sprintf("chatcmpl-%d", time.Now().UnixNano())
}

func buildTextChatCompletionResponse(completionID string, created int64, modelID string, promptText string, answerText string, debug *debugInfo) chatCompletionResponse {
	finishReason := "stop"
	return chatCompletionResponse{
		ID:      completionID,
		Object:  "chat.completion",
		Created: created,
		Model:   modelID,
		Choices: []chatCompletionChoice{
			{
				Index: 0,
				Message: chatResponseMessage{
					Role:    "assistant",
					Content: answerText,
				},
				FinishReason: &finishReason,
			},
		},
		Usage: estimateUsage(promptText, answerText),
		Debug: debug,
	}
}

func estimateUsage(prompt string, completion string) *usage {
	promptTokens := estimateTokenCount(prompt)
	completionTokens := estimateTokenCount(completion)
	return &usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

func estimateTokenCount(text string) int {
	return len(strings.Fields(text))
}

func latestUserMessageContent(messages []chatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" {
			continue
		}
		text := extractMessageText(messages[i])
		if text != "" {
			return text, true
		}
	}
	return "", false
}

func extractMessageText(message chatMessage) string {
	if message.Content == nil {
		return ""
	}

	switch content := message.Content.(type) {
	case string:
		return strings.TrimSpace(content)
	case []interface{}:
		parts := make([]string, 0, len(content))
		for _, item := range content {
			switch typed := item.(type) {
			case string:
				if segment := strings.TrimSpace(typed); segment != "" {
					parts = append(parts, segment)
				}
			case map[string]interface{}:
				if text, ok := typed["text"].(string); ok {
					if segment := strings.TrimSpace(text); segment != "" {
						parts = append(parts, segment)
					}
				}
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	default:
		payload, err := json.Marshal(content)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(payload))
	}
}
