package openrouter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/academic-crs/internal/resilience"
)

func noRetry() resilience.Policy {
	return resilience.Policy{Attempts: 1, Service: "openrouter"}
}

func TestChatCompletion(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     string
		wantContent string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{
				"id": "gen-123",
				"model": "mistralai/devstral-2512:free",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
			}`,
			wantContent: "Hello!",
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error": {"message": "No auth credentials found", "code": 401}}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "embedded_error",
			status:  http.StatusOK,
			body:    `{"error": {"message": "Provider returned error", "code": 502}}`,
			wantErr: "Provider returned error",
		},
		{
			name:    "no_choices",
			status:  http.StatusOK,
			body:    `{"id": "gen-1", "choices": []}`,
			wantErr: "no choices",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				assert.Equal(t, "https://crs.example.edu", r.Header.Get("HTTP-Referer"))
				assert.Equal(t, "Academic CRS", r.Header.Get("X-Title"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient("test-key",
				WithBaseURL(srv.URL),
				WithAppInfo("https://crs.example.edu", "Academic CRS"),
				WithRetryPolicy(noRetry()),
			)

			resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{
				Model:    "mistralai/devstral-2512:free",
				Messages: []Message{{Role: "user", Content: "Hi"}},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, resp.Choices[0].Message.Content)
			assert.Equal(t, 15, resp.Usage.TotalTokens)
		})
	}
}

func TestChatCompletion_RequestBody(t *testing.T) {
	var got ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "tool_calls": [
			{"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\":\"ms cs germany\"}"}}
		]}, "finish_reason": "tool_calls"}]}`))
	}))
	defer srv.Close()

	temp := 0.1
	maxTokens := 512
	resp, err := NewClient("k", WithBaseURL(srv.URL), WithRetryPolicy(noRetry())).ChatCompletion(context.Background(), ChatCompletionRequest{
		Model:       "m",
		Messages:    []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
		Tools: []Tool{{Type: "function", Function: FunctionDef{
			Name:       "web_search",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}}},
	})

	require.NoError(t, err)
	assert.Equal(t, "m", got.Model)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.1, *got.Temperature, 1e-9)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "web_search", got.Tools[0].Function.Name)

	calls := resp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, `{"query":"ms cs germany"}`, calls[0].Function.Arguments)
	assert.Equal(t, "tool_calls", resp.Choices[0].FinishReason)
}

func TestChatCompletion_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRetryPolicy(resilience.Policy{
		Attempts: 3, Backoff: time.Millisecond, Service: "openrouter",
	}))
	resp, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Choices[0].Message.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatCompletion_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker("openrouter", 2, time.Minute)
	client := NewClient("k", WithBaseURL(srv.URL), WithRetryPolicy(noRetry()), WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
		require.Error(t, err)
	}
	_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})

	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatCompletion_AuthFailureDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker("openrouter", 1, time.Minute)
	client := NewClient("bad", WithBaseURL(srv.URL), WithRetryPolicy(noRetry()), WithBreaker(breaker))

	for i := 0; i < 3; i++ {
		_, err := client.ChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, resilience.ErrBreakerOpen)
	}
	assert.False(t, breaker.Open())
}

func TestChatCompletion_RequiresModel(t *testing.T) {
	_, err := NewClient("k").ChatCompletion(context.Background(), ChatCompletionRequest{})
	assert.ErrorContains(t, err, "model is required")
}
