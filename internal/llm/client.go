package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 512

// Client is an OpenAI-compatible chat completion client. Safe for
// concurrent use.
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client
}

// NewClient validates config and returns a client.
//
//	client, err := llm.NewClient(&llm.Config{
//		APIURL:    "http://127.0.0.1:11434/v1",
//		Model:     "qwen2.5:7b-instruct",
//		MaxTokens: 4096,
//		Timeout:   20,
//	})
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Client{
		config:   *config,
		endpoint: strings.TrimRight(config.APIURL, "/") + "/chat/completions",
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}, nil
}

func (c *Client) Model() string {
	return c.config.Model
}

// Complete sends an optional system prompt and one user message and returns
// the first choice's content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: user})

	resp, err := c.chat(ctx, chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) chat(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(raw), maxErrorBody)}
		if decodeErr == nil && parsed.Error != nil {
			statusErr.Cause = parsed.Error
		}
		return nil, statusErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, parsed.Error
	}
	return &parsed, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
