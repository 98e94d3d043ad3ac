package openaichat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ardmere/crmparse/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. One
// client backs both the extraction engine and the agent planner.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

func New(baseURL, model, apiKey string) *Client {
	return NewWithOptions(baseURL, model, apiKey, Options{})
}

type Options struct {
	HTTPTimeout        time.Duration
	RequestsPerMinute  int
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL, model, apiKey string, options Options) *Client {
	httpTimeout := options.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if options.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(options.RequestsPerMinute)), 1)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: httpTimeout},
		limiter:    limiter,
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.chat(ctx, c.buildPayload(systemPrompt, userPrompt))
}

// CompleteJSON constrains the response to a JSON object and trims any
// wrapper text the model emits around it.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	payload := c.buildPayload(systemPrompt, userPrompt)
	payload["response_format"] = map[string]any{"type": "json_object"}

	text, err := c.chat(ctx, payload)
	if err != nil {
		return "", err
	}
	return extractJSONObject(text), nil
}

func (c *Client) buildPayload(systemPrompt, userPrompt string) map[string]any {
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})

	return map[string]any{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) chat(ctx context.Context, payload map[string]any) (string, error) {
	var response chatResponse

	call := func(callCtx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return err
			}
		}
		var decoded chatResponse
		if err := c.postJSON(callCtx, "/v1/chat/completions", payload, &decoded, "chat"); err != nil {
			return err
		}
		response = decoded
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.chat", call, classifyOpenAIError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("chat completion", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("empty chat response")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
