// Package batch is a client for the asynchronous document translation
// service.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/jobs"
)

const defaultPreserveFormat = "markdown"

type Config struct {
	BaseURL string
	APIKey  string
	// Timeout is in seconds.
	Timeout int
}

// Client implements jobs.BatchProvider over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ jobs.BatchProvider = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("batch API URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid batch API URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout < 1 {
		timeout = 60
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
	}, nil
}

type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	Status      string `json:"status"`
	Progress    int    `json:"progress"`
	DownloadURL string `json:"download_url"`
	OutputURL   string `json:"output_url"`
	Error       string `json:"error"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// SubmitJob uploads the document and returns the provider's job id.
func (c *Client) SubmitJob(ctx context.Context, req jobs.SubmitRequest) (string, error) {
	body, contentType, err := encodeSubmit(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/translate-file", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	var resp submitResponse
	if err := c.do(httpReq, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return "", fmt.Errorf("batch service returned no job id")
	}
	return resp.JobID, nil
}

func encodeSubmit(req jobs.SubmitRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := req.FileName
	if name == "" {
		name = "document"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if req.MimeType != "" {
		header.Set("Content-Type", req.MimeType)
	} else {
		header.Set("Content-Type", "application/octet-stream")
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(req.Content); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}

	fields := [][2]string{
		{"target_lang", req.TargetLanguage},
		{"source_lang", req.SourceLanguage},
		{"preserve_format", defaultPreserveFormat},
		{"return_mode", "async"},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// GetJobStatus fetches the provider's current view of a job.
func (c *Client) GetJobStatus(ctx context.Context, providerJobID string) (jobs.ProviderStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/jobs/"+url.PathEscape(providerJobID), nil)
	if err != nil {
		return jobs.ProviderStatus{}, fmt.Errorf("failed to create request: %w", err)
	}

	var resp statusResponse
	if err := c.do(httpReq, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			// The provider may not list a job it has just accepted, so a 404
			// here is retried rather than treated as a missing local job.
			return jobs.ProviderStatus{}, errs.Wrap(err, errs.ProviderUnavailable, "batch job not visible to provider").
				WithContext("provider_job_id", providerJobID)
		}
		return jobs.ProviderStatus{}, err
	}

	status, err := parseStatus(resp.Status)
	if err != nil {
		return jobs.ProviderStatus{}, err
	}
	download := resp.DownloadURL
	if download == "" {
		download = resp.OutputURL
	}
	return jobs.ProviderStatus{
		Status:      status,
		Progress:    resp.Progress,
		DownloadURL: download,
		Error:       resp.Error,
	}, nil
}

func parseStatus(s string) (jobs.Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "submitted", "pending":
		return jobs.StatusSubmitted, nil
	case "running", "in_progress", "processing":
		return jobs.StatusInProgress, nil
	case "succeeded", "completed", "done":
		return jobs.StatusCompleted, nil
	case "failed", "error":
		return jobs.StatusFailed, nil
	case "stopped", "cancelled", "canceled":
		return jobs.StatusStopped, nil
	}
	return "", fmt.Errorf("unknown batch job status %q", s)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("request timed out: %w", err)
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(body))
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Detail != "" {
			detail = er.Detail
		}
		switch resp.StatusCode {
		case http.StatusRequestEntityTooLarge:
			return errs.New(errs.PayloadTooLarge, detail)
		case http.StatusUnsupportedMediaType, http.StatusBadRequest:
			return errs.New(errs.Validation, detail).WithContext("status", resp.StatusCode)
		}
		return &statusError{code: resp.StatusCode, detail: detail}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("batch API request failed with status %d: %s", e.code, e.detail)
}
