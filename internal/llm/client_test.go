package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := NewClient(&Config{APIKey: "test-key", APIURL: url, Model: "m", MaxTokens: 64, Temperature: 0.3, Timeout: 5})
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(&Config{
		APIURL:    "http://127.0.0.1:11434/v1/",
		Model:     "test-model",
		MaxTokens: 1000,
		Timeout:   30,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:11434/v1/chat/completions", client.endpoint)
	assert.Equal(t, "test-model", client.Model())

	tests := []Config{
		{},
		{APIURL: "localhost:11434", Model: "m", MaxTokens: 1, Timeout: 1},
		{APIURL: "http://x", MaxTokens: 1, Timeout: 1},
		{APIURL: "http://x", Model: "m", Timeout: 1},
		{APIURL: "http://x", Model: "m", MaxTokens: 1, Timeout: 1, Temperature: 3},
		{APIURL: "http://x", Model: "m", MaxTokens: 1},
	}
	for _, cfg := range tests {
		_, err := NewClient(&cfg)
		assert.ErrorContains(t, err, "invalid configuration")
	}
}

func TestComplete_SendsSystemPromptAndReturnsFirstChoice(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","choices":[{"message":{"role":"assistant","content":"Xin chào"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	out, err := newTestClient(t, server.URL+"/v1").Complete(context.Background(), "translate", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Xin chào", out)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: "translate"}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "Hello"}, got.Messages[1])
	assert.Equal(t, 64, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
}

func TestComplete_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		contains  string
		temporary bool
	}{
		{"api error body", http.StatusBadRequest, `{"error":{"message":"model not found","type":"invalid_request_error"}}`, "model not found", false},
		{"overloaded", http.StatusServiceUnavailable, "busy", "busy", true},
		{"rate limited", http.StatusTooManyRequests, strings.Repeat("x", 2*maxErrorBody), "...", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).Complete(context.Background(), "", "Hello")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.temporary, statusErr.Temporary())
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Complete(context.Background(), "", "Hello")
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestComplete_ErrorInSuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"context length exceeded","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL).Complete(context.Background(), "", "Hello")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "context length exceeded", apiErr.Message)
}
