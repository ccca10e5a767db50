package llm

import (
	"errors"
	"fmt"
)

// ErrNoChoices is returned when the server answers without any completion.
var ErrNoChoices = errors.New("no choices in response")

// Message is a single chat message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *APIError `json:"error,omitempty"`
}

// APIError is the error object of an OpenAI-compatible response body.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("LLM API error: %s (type: %s)", e.Message, e.Type)
}

// StatusError reports a non-2xx answer. Body is truncated.
type StatusError struct {
	StatusCode int
	Body       string
	Cause      *APIError
}

func (e *StatusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("status %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}

// Temporary reports whether retrying later could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
