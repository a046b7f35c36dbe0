// internal/common/genai/client.go
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"salesforce-query-workers/internal/common/config"
	"salesforce-query-workers/internal/common/httpclient"
	"salesforce-query-workers/internal/common/metrics"
)

const tracerName = "crm-query.genai"

var (
	ErrLLMTimeout          = errors.New("LLM_TIMEOUT")
	ErrLLMCompletionFailed = errors.New("LLM_COMPLETION_FAILED")
)

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float64      `json:"temperature,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Client sends single-turn prompts to an OpenAI compatible chat completions
// endpoint. It is safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature *float64
	maxTokens   *int
}

func NewClient(cfg config.GenAIConfig) *Client {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return NewClientWithHTTP(cfg, httpclient.New(timeout))
}

func NewClientWithHTTP(cfg config.GenAIConfig, httpClient *http.Client) *Client {
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}
	temperature := cfg.Temperature
	c.temperature = &temperature
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		c.maxTokens = &maxTokens
	}
	return c
}

// Complete sends prompt as a single user message and returns the trimmed
// content of the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "genai.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("genai.model", c.model),
		attribute.Int("genai.prompt_length", len(prompt)),
	)

	start := time.Now()
	content, err := c.complete(ctx, prompt)
	metrics.GenAIRequestDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.GenAIRequests.WithLabelValues(classifyError(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	metrics.GenAIRequests.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("genai.response_length", len(content)))
	return content, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		Model:               c.model,
		Messages:            []chatMessage{{Role: "user", Content: prompt}},
		Temperature:         c.temperature,
		MaxCompletionTokens: c.maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %v", ErrLLMCompletionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrLLMCompletionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", fmt.Errorf("%w: request failed: %v", ErrLLMCompletionFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response body: %v", ErrLLMCompletionFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API returned %d: %s", ErrLLMCompletionFailed, resp.StatusCode, truncate(string(respBody), 512))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: parsing response: %v", ErrLLMCompletionFailed, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: API error: %s - %s", ErrLLMCompletionFailed, parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: returned no choices", ErrLLMCompletionFailed)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classifyError maps an error to a low-cardinality metric label.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrLLMTimeout) {
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "returned 401") || strings.Contains(msg, "returned 403"):
		return "auth"
	case strings.Contains(msg, "returned 429"):
		return "rate_limit"
	case strings.Contains(msg, "returned 5"):
		return "server"
	default:
		return "unknown"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
