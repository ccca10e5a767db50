package jobs

import (
	"context"
	"errors"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/pkg/log"
)

// DefaultMaxDocumentBytes is the largest document accepted for submission.
const DefaultMaxDocumentBytes = 50 << 20

var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"text/plain":      true,
	"text/markdown":   true,
	"text/x-markdown": true,
	"text/html":       true,
	"text/rtf":        true,
	"application/rtf": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Manager owns the lifecycle of asynchronous document jobs: deduplicated
// submission, status transitions and download revalidation.
type Manager struct {
	provider BatchProvider
	store    Store
	objects  ObjectStore

	maxBytes int64
	now      func() time.Time
	newID    func() string

	starts singleflight.Group
}

type ManagerOption func(*Manager)

func WithMaxDocumentBytes(n int64) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxBytes = n
		}
	}
}

func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a job manager. objects may be nil, in which case
// download links are trusted as issued.
func NewManager(batch BatchProvider, store Store, objects ObjectStore, opts ...ManagerOption) *Manager {
	m := &Manager{
		provider: batch,
		store:    store,
		objects:  objects,
		maxBytes: DefaultMaxDocumentBytes,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartJob returns the active or cached job for the message and language,
// or submits a new one. Concurrent calls for the same key share one result.
func (m *Manager) StartJob(ctx context.Context, req StartRequest) (StartResult, error) {
	req, err := m.validate(req)
	if err != nil {
		return StartResult{}, err
	}

	// The shared start outlives any single caller so one caller leaving
	// does not fail the others waiting on the same key.
	shared := context.WithoutCancel(ctx)
	ch := m.starts.DoChan(activeKey(req.MessageKey, req.TargetLanguage), func() (any, error) {
		return m.startJob(shared, req)
	})

	select {
	case <-ctx.Done():
		return StartResult{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return StartResult{}, r.Err
		}
		res := r.Val.(StartResult)
		res.Job = cloneJob(res.Job)
		return res, nil
	}
}

func (m *Manager) validate(req StartRequest) (StartRequest, error) {
	req.MessageKey = strings.TrimSpace(req.MessageKey)
	if req.MessageKey == "" {
		return req, errs.New(errs.Validation, "message key is required")
	}
	src, tgt, err := provider.NormalizePair(req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		return req, err
	}
	req.SourceLanguage, req.TargetLanguage = src, tgt

	if len(req.Content) == 0 {
		return req, errs.New(errs.Validation, "document is empty")
	}
	if int64(len(req.Content)) > m.maxBytes {
		return req, errs.Newf(errs.PayloadTooLarge, "document is %d bytes, limit is %d", len(req.Content), m.maxBytes).
			WithContext("limit", m.maxBytes)
	}

	mt, err := documentMimeType(req.MimeType, req.Content)
	if err != nil {
		return req, err
	}
	req.MimeType = mt
	return req, nil
}

// documentMimeType returns the media type without parameters, sniffing it
// from content when declared is empty.
func documentMimeType(declared string, content []byte) (string, error) {
	if declared == "" {
		for m := mimetype.Detect(content); m != nil; m = m.Parent() {
			if base := baseMimeType(m.String()); allowedMimeTypes[base] {
				return base, nil
			}
		}
		return "", errs.New(errs.Validation, "unsupported document type").
			WithContext("detected", mimetype.Detect(content).String())
	}

	base := baseMimeType(declared)
	if !allowedMimeTypes[base] {
		return "", errs.New(errs.Validation, "unsupported document type").WithContext("mime_type", declared)
	}
	return base, nil
}

func baseMimeType(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func (m *Manager) startJob(ctx context.Context, req StartRequest) (StartResult, error) {
	existing, err := m.store.LatestJob(ctx, req.MessageKey, req.TargetLanguage)
	if err != nil {
		return StartResult{}, errs.Wrap(err, errs.Storage, "failed to look up existing job")
	}

	var superseded *DocumentJob
	if existing != nil {
		switch {
		case !existing.Status.Terminal():
			return StartResult{Job: existing}, nil
		case existing.Status == StatusCompleted:
			valid, err := m.probe(ctx, existing.DownloadURL)
			if err != nil {
				log.Warn("Failed to validate download for job %s, resubmitting: %v", existing.ID, err)
			}
			if err == nil && valid {
				return StartResult{Job: existing, Cached: true}, nil
			}
			superseded = existing
		}
	}

	providerJobID, err := m.provider.SubmitJob(ctx, SubmitRequest{
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		Content:        req.Content,
		TargetLanguage: req.TargetLanguage,
		SourceLanguage: req.SourceLanguage,
	})
	if err != nil {
		var typed *errs.Error
		if errors.As(err, &typed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return StartResult{}, err
		}
		return StartResult{}, errs.Wrap(err, errs.ProviderUnavailable, "failed to submit document")
	}

	now := m.now()
	job := &DocumentJob{
		ID:             m.newID(),
		ProviderJobID:  providerJobID,
		MessageKey:     req.MessageKey,
		TargetLanguage: req.TargetLanguage,
		SourceLanguage: req.SourceLanguage,
		FileName:       req.FileName,
		Status:         StatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		if errors.Is(err, ErrActiveJobExists) {
			log.Error("Orphaned provider job %s: another job is already active for %s/%s",
				providerJobID, req.MessageKey, req.TargetLanguage)
			winner, gerr := m.store.LatestJob(ctx, req.MessageKey, req.TargetLanguage)
			if gerr == nil && winner != nil {
				return StartResult{Job: winner}, nil
			}
		}
		return StartResult{}, errs.Wrap(err, errs.Storage, "failed to record job").
			WithContext("provider_job_id", providerJobID)
	}

	if superseded != nil {
		superseded.SupersededBy = job.ID
		superseded.UpdatedAt = now
		if err := m.store.UpsertJob(ctx, superseded); err != nil {
			log.Warn("Failed to mark job %s superseded by %s: %v", superseded.ID, job.ID, err)
		}
	}

	log.Info("Submitted document job %s (provider job %s) for %s/%s",
		job.ID, providerJobID, req.MessageKey, req.TargetLanguage)
	return StartResult{Job: job, Created: true}, nil
}

// PollStatus refreshes a job from the provider. Terminal jobs are returned
// as stored without contacting the provider. A provider error leaves the
// record unchanged.
func (m *Manager) PollStatus(ctx context.Context, jobID string) (*DocumentJob, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	st, err := m.provider.GetJobStatus(ctx, job.ProviderJobID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// JobNotFound is reserved for the local record; a provider that
		// cannot find its job is retried on the next poll.
		if errs.Is(err, errs.JobNotFound) {
			return nil, errs.Newf(errs.ProviderUnavailable, "batch provider did not find job: %v", err).
				WithContext("job_id", jobID)
		}
		var typed *errs.Error
		if errors.As(err, &typed) {
			return nil, err
		}
		return nil, errs.Wrap(err, errs.ProviderUnavailable, "failed to query job status").
			WithContext("job_id", jobID)
	}

	if !m.apply(job, st) {
		return job, nil
	}
	if err := m.store.UpsertJob(ctx, job); err != nil {
		return nil, errs.Wrap(err, errs.Storage, "failed to save job status").WithContext("job_id", jobID)
	}
	if job.Status.Terminal() {
		log.Info("Document job %s finished with status %s", job.ID, job.Status)
	}
	return job, nil
}

// apply moves job toward st without ever moving backwards and reports
// whether anything changed.
func (m *Manager) apply(job *DocumentJob, st ProviderStatus) bool {
	before := *job

	next := st.Status
	if !next.Valid() || next.rank() < job.Status.rank() {
		next = job.Status
	}
	if next == StatusCompleted && st.DownloadURL == "" {
		next = StatusFailed
		st.Error = "provider reported completion without a download link"
	}

	progress := min(max(st.Progress, 0), 100)
	if progress > job.ProgressPercent {
		job.ProgressPercent = progress
	}
	job.Status = next

	switch next {
	case StatusCompleted:
		job.ProgressPercent = 100
		job.DownloadURL = st.DownloadURL
	case StatusFailed:
		job.ErrorMessage = st.Error
		if job.ErrorMessage == "" {
			job.ErrorMessage = "translation failed"
		}
	}

	changed := job.Status != before.Status || job.ProgressPercent != before.ProgressPercent
	if !changed {
		return false
	}
	now := m.now()
	job.UpdatedAt = now
	if job.Status.Terminal() {
		job.CompletedAt = &now
	}
	return true
}

// Download returns a valid link for a completed job, re-signing it when the
// stored one has expired.
func (m *Manager) Download(ctx context.Context, jobID string) (string, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}
	if job.Status != StatusCompleted {
		return "", errs.Newf(errs.Validation, "job is %s, not completed", job.Status).WithContext("job_id", jobID)
	}

	if valid, err := m.probe(ctx, job.DownloadURL); err == nil && valid {
		return job.DownloadURL, nil
	} else if err != nil {
		log.Warn("Failed to validate download for job %s: %v", jobID, err)
	}

	if m.objects != nil {
		fresh, err := m.objects.Refresh(ctx, job.DownloadURL)
		if err == nil {
			if valid, perr := m.probe(ctx, fresh); perr == nil && valid {
				job.DownloadURL = fresh
				job.UpdatedAt = m.now()
				if err := m.store.UpsertJob(ctx, job); err != nil {
					log.Warn("Failed to save refreshed download for job %s: %v", jobID, err)
				}
				return fresh, nil
			}
		} else {
			log.Warn("Failed to refresh download for job %s: %v", jobID, err)
		}
	}

	return "", errs.New(errs.DownloadExpired, "download link has expired").WithContext("job_id", jobID)
}

func (m *Manager) probe(ctx context.Context, url string) (bool, error) {
	if url == "" {
		return false, nil
	}
	if m.objects == nil {
		return true, nil
	}
	return m.objects.Probe(ctx, url)
}

// ActiveJobs lists every job that still needs polling.
func (m *Manager) ActiveJobs(ctx context.Context) ([]*DocumentJob, error) {
	jobs, err := m.store.ListActiveJobs(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.Storage, "failed to list active jobs")
	}
	return jobs, nil
}

// Job returns the stored record without contacting the provider.
func (m *Manager) Job(ctx context.Context, jobID string) (*DocumentJob, error) {
	return m.store.GetJob(ctx, jobID)
}
