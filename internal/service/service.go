// Package service is the library boundary over the translation subsystem:
// synchronous text and document translation, SMS segmentation and
// asynchronous document jobs.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/seabridge/internal/document"
	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/jobs"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/internal/sms"
	"github.com/MimeLyc/seabridge/pkg/log"
)

// Deps are the collaborators a Service is built from. Selector is
// required; Jobs may be nil when no batch provider is configured.
type Deps struct {
	Selector *provider.Selector
	// Pipeline defaults to a pipeline over Selector.
	Pipeline *document.Pipeline
	Jobs     *jobs.Manager
	// Poller defaults to a poller over Jobs.
	Poller *jobs.Poller

	SMSMaxLength          int
	DefaultTargetLanguage string
}

type Service struct {
	selector *provider.Selector
	pipeline *document.Pipeline
	jobs     *jobs.Manager
	poller   *jobs.Poller

	smsMaxLength  int
	defaultTarget string
}

func New(deps Deps) (*Service, error) {
	if deps.Selector == nil {
		return nil, fmt.Errorf("provider selector is required")
	}
	s := &Service{
		selector:      deps.Selector,
		pipeline:      deps.Pipeline,
		jobs:          deps.Jobs,
		poller:        deps.Poller,
		smsMaxLength:  deps.SMSMaxLength,
		defaultTarget: deps.DefaultTargetLanguage,
	}
	if s.pipeline == nil {
		s.pipeline = document.NewPipeline(s.selector)
	}
	if s.poller == nil && s.jobs != nil {
		s.poller = jobs.NewPoller(s.jobs)
	}
	return s, nil
}

// TranslateText translates a short text with primary/fallback selection.
func (s *Service) TranslateText(ctx context.Context, req provider.Request) (provider.Result, error) {
	req.TargetLanguage = s.TargetLanguage(req.TargetLanguage)
	res, err := s.selector.Translate(ctx, req)
	if err != nil {
		return provider.Result{}, err
	}
	log.Debug("Translated %d chars to %s via %s", len(req.Content), req.TargetLanguage, res.ProviderUsed)
	return res, nil
}

// TranslateDocument chunks a long text, translates the chunks in parallel
// and reassembles them in order.
func (s *Service) TranslateDocument(ctx context.Context, req document.Request) (document.Result, error) {
	req.TargetLanguage = s.TargetLanguage(req.TargetLanguage)
	return s.pipeline.TranslateDocument(ctx, req)
}

// ChunkForSms splits text into numbered SMS segments. maxLength <= 0 uses
// the configured segment length.
func (s *Service) ChunkForSms(text string, maxLength int) ([]sms.Segment, error) {
	if maxLength <= 0 {
		maxLength = s.smsMaxLength
	}
	return sms.Pack(text, maxLength)
}

// StartDocumentJob starts or reuses a batch job and, once the poller has
// been started by Resume, watches it until it reaches a terminal status.
func (s *Service) StartDocumentJob(ctx context.Context, req jobs.StartRequest) (jobs.StartResult, error) {
	if err := s.requireJobs(); err != nil {
		return jobs.StartResult{}, err
	}
	req.TargetLanguage = s.TargetLanguage(req.TargetLanguage)

	res, err := s.jobs.StartJob(ctx, req)
	if err != nil {
		return jobs.StartResult{}, err
	}
	// Without a running poller (one-shot CLI, Lambda) callers poll
	// explicitly and nothing is scheduled.
	if !res.Job.Status.Terminal() && s.poller.Running() {
		s.poller.Watch(res.Job.ID)
	}
	return res, nil
}

// PollJobStatus refreshes a job from the batch provider. Terminal jobs are
// no longer watched.
func (s *Service) PollJobStatus(ctx context.Context, jobID string) (*jobs.DocumentJob, error) {
	if err := s.requireJobs(); err != nil {
		return nil, err
	}
	job, err := s.jobs.PollStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		s.poller.Stop(job.ID)
	}
	return job, nil
}

// Job returns the stored job record without contacting the provider.
func (s *Service) Job(ctx context.Context, jobID string) (*jobs.DocumentJob, error) {
	if err := s.requireJobs(); err != nil {
		return nil, err
	}
	return s.jobs.Job(ctx, jobID)
}

// StopPolling stops watching jobID. The provider job keeps running.
func (s *Service) StopPolling(jobID string) bool {
	if s.poller == nil {
		return false
	}
	return s.poller.Stop(jobID)
}

// DownloadURL returns a valid download link for a completed job.
func (s *Service) DownloadURL(ctx context.Context, jobID string) (string, error) {
	if err := s.requireJobs(); err != nil {
		return "", err
	}
	return s.jobs.Download(ctx, jobID)
}

// WatchedJobs returns the ids of jobs currently being polled.
func (s *Service) WatchedJobs() []string {
	if s.poller == nil {
		return nil
	}
	return s.poller.Active()
}

// JobsEnabled reports whether document jobs are available.
func (s *Service) JobsEnabled() bool {
	return s.jobs != nil
}

// Resume watches every active job from the store and starts the poller.
func (s *Service) Resume(ctx context.Context) (int, error) {
	if s.poller == nil {
		return 0, nil
	}
	n, err := s.poller.Resume(ctx)
	if err != nil {
		return 0, err
	}
	s.poller.Start()
	return n, nil
}

// Close stops the poller and waits for in-flight polls.
func (s *Service) Close(ctx context.Context) error {
	if s.poller == nil {
		return nil
	}
	return s.poller.Shutdown(ctx)
}

func (s *Service) requireJobs() error {
	if s.jobs == nil {
		return errs.New(errs.ProviderUnavailable, "document jobs are not configured")
	}
	return nil
}

// TargetLanguage returns lang, or the configured default when lang is blank.
func (s *Service) TargetLanguage(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return s.defaultTarget
	}
	return lang
}
