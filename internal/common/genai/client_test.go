package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"salesforce-query-workers/internal/common/config"
)

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return exporter
}

// completeSpan returns the span recorded by Complete. The HTTP transport
// adds a client span of its own.
func completeSpan(t *testing.T, exporter *tracetest.InMemoryExporter) tracetest.SpanStub {
	t.Helper()
	var found []tracetest.SpanStub
	for _, span := range exporter.GetSpans() {
		if span.Name == "genai.Complete" {
			found = append(found, span)
		}
	}
	require.Len(t, found, 1)
	return found[0]
}

func testConfig(baseURL string) config.GenAIConfig {
	return config.GenAIConfig{
		BaseURL:     baseURL,
		APIKey:      "sk-test",
		Model:       "gpt-4o",
		Temperature: 0,
		MaxTokens:   256,
		Timeout:     5000,
	}
}

func TestComplete_Success(t *testing.T) {
	exporter := setupTestTracer(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "which object?", req.Messages[0].Content)
		require.NotNil(t, req.Temperature)
		assert.Equal(t, 0.0, *req.Temperature)
		require.NotNil(t, req.MaxCompletionTokens)
		assert.Equal(t, 256, *req.MaxCompletionTokens)

		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"  Case\n"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL + "/"))
	out, err := client.Complete(context.Background(), "which object?")
	require.NoError(t, err)
	assert.Equal(t, "Case", out)

	span := completeSpan(t, exporter)
	assert.NotEqual(t, codes.Error, span.Status.Code)
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		contains string
		class    string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, contains: "API returned 500", class: "server"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, contains: "API returned 401", class: "auth"},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, contains: "API returned 429", class: "rate_limit"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, contains: "no choices", class: "unknown"},
		{name: "error payload", status: http.StatusOK, body: `{"error":{"type":"invalid_request_error","message":"bad"}}`, contains: "invalid_request_error", class: "unknown"},
		{name: "malformed json", status: http.StatusOK, body: `not json`, contains: "parsing response", class: "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter := setupTestTracer(t)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(testConfig(server.URL)).Complete(context.Background(), "prompt")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLLMCompletionFailed))
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, tt.class, classifyError(err))

			assert.Equal(t, codes.Error, completeSpan(t, exporter).Status.Code)
		})
	}
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(testConfig(server.URL)).Complete(ctx, "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLLMTimeout)
	assert.Equal(t, "timeout", classifyError(err))
}

func TestNewClient_OmitsMaxTokensWhenUnset(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.MaxTokens = 0
	client := NewClient(cfg)
	assert.Nil(t, client.maxTokens)
	require.NotNil(t, client.temperature)
}
