package jobs

import (
	"context"
	"time"
)

type Status string

const (
	StatusSubmitted  Status = "SUBMITTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusStopped    Status = "STOPPED"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// rank orders statuses along the only allowed direction of travel.
func (s Status) rank() int {
	switch s {
	case StatusSubmitted:
		return 0
	case StatusInProgress:
		return 1
	default:
		return 2
	}
}

// DocumentJob is the persisted record of one asynchronous document
// translation.
type DocumentJob struct {
	ID string `json:"id"`
	// ProviderJobID is the batch provider's identifier for the job.
	ProviderJobID   string `json:"provider_job_id"`
	MessageKey      string `json:"message_key"`
	TargetLanguage  string `json:"target_language"`
	SourceLanguage  string `json:"source_language,omitempty"`
	FileName        string `json:"file_name,omitempty"`
	Status          Status `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	// DownloadURL is set only when Status is COMPLETED.
	DownloadURL string `json:"download_url,omitempty"`
	// ErrorMessage is set only when Status is FAILED.
	ErrorMessage string `json:"error_message,omitempty"`
	// SupersededBy names the job that replaced this one after its download
	// expired.
	SupersededBy string     `json:"superseded_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type StartRequest struct {
	MessageKey     string
	TargetLanguage string
	SourceLanguage string
	Content        []byte
	// MimeType is sniffed from Content when empty.
	MimeType string
	FileName string
}

type StartResult struct {
	Job *DocumentJob `json:"job"`
	// Cached is true when a completed job with a valid download was reused.
	Cached bool `json:"cached"`
	// Created is true when a new provider job was submitted.
	Created bool `json:"created"`
}

type SubmitRequest struct {
	FileName       string
	MimeType       string
	Content        []byte
	TargetLanguage string
	SourceLanguage string
}

// ProviderStatus is the batch provider's view of a job.
type ProviderStatus struct {
	Status      Status
	Progress    int
	DownloadURL string
	Error       string
}

// BatchProvider is an external asynchronous document translation service.
type BatchProvider interface {
	SubmitJob(ctx context.Context, req SubmitRequest) (string, error)
	GetJobStatus(ctx context.Context, providerJobID string) (ProviderStatus, error)
}

// ObjectStore validates and renews time-limited download links.
type ObjectStore interface {
	// Probe reports whether signedURL still resolves to an existing object.
	Probe(ctx context.Context, signedURL string) (bool, error)
	// Refresh returns a newly signed URL for the object behind signedURL.
	Refresh(ctx context.Context, signedURL string) (string, error)
}

func cloneJob(job *DocumentJob) *DocumentJob {
	if job == nil {
		return nil
	}
	tmp := *job
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		tmp.CompletedAt = &t
	}
	return &tmp
}
