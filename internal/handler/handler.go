// Package handler serves translation requests delivered as Lambda events.
package handler

import (
	"context"
	"fmt"

	"github.com/MimeLyc/seabridge/internal/document"
	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/jobs"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/internal/service"
	"github.com/MimeLyc/seabridge/internal/sms"
)

const (
	ActionTranslate         = "translate"
	ActionTranslateDocument = "translateDocument"
	ActionChunkForSms       = "chunkForSms"
	ActionStartDocumentJob  = "startDocumentJob"
	ActionPollJobStatus     = "pollJobStatus"
	ActionDownloadURL       = "downloadUrl"
)

// Request is one Lambda invocation.
type Request struct {
	Action     string `json:"action"`
	Text       string `json:"text,omitempty"`
	SourceLang string `json:"sourceLang,omitempty"`
	TargetLang string `json:"targetLang,omitempty"`

	MaxChunkSize int `json:"maxChunkSize,omitempty"`
	MaxLength    int `json:"maxLength,omitempty"`

	MessageKey string `json:"messageKey,omitempty"`
	// Document is base64 in the JSON event.
	Document []byte `json:"document,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	FileName string `json:"fileName,omitempty"`
	JobID    string `json:"jobId,omitempty"`
}

// Response carries either a result or a typed error. Errors are never
// returned to the Lambda runtime so callers always get a JSON body.
type Response struct {
	Text           string        `json:"text,omitempty"`
	ProviderUsed   provider.Tier `json:"providerUsed,omitempty"`
	Confidence     *float64      `json:"confidence,omitempty"`
	DetectedSource string        `json:"detectedSource,omitempty"`

	ChunksProcessed int `json:"chunksProcessed,omitempty"`
	FallbackChunks  int `json:"fallbackChunks,omitempty"`

	Segments []sms.Segment `json:"segments,omitempty"`

	Job         *jobs.DocumentJob `json:"job,omitempty"`
	Cached      bool              `json:"cached,omitempty"`
	Created     bool              `json:"created,omitempty"`
	DownloadURL string            `json:"downloadUrl,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Handle dispatches req by Action.
func (h *Handler) Handle(ctx context.Context, req Request) (*Response, error) {
	if err := validateRequest(req); err != nil {
		return errorResponse(err), nil
	}

	resp, err := h.dispatch(ctx, req)
	if err != nil {
		return errorResponse(err), nil
	}
	return resp, nil
}

func (h *Handler) dispatch(ctx context.Context, req Request) (*Response, error) {
	switch req.Action {
	case ActionTranslate:
		res, err := h.svc.TranslateText(ctx, provider.Request{
			Content:        req.Text,
			TargetLanguage: req.TargetLang,
			SourceLanguage: req.SourceLang,
		})
		if err != nil {
			return nil, err
		}
		return &Response{
			Text:           res.Text,
			ProviderUsed:   res.ProviderUsed,
			Confidence:     res.Confidence,
			DetectedSource: res.DetectedSource,
		}, nil

	case ActionTranslateDocument:
		res, err := h.svc.TranslateDocument(ctx, document.Request{
			Text:           req.Text,
			TargetLanguage: req.TargetLang,
			SourceLanguage: req.SourceLang,
			MaxChunkSize:   req.MaxChunkSize,
		})
		if err != nil {
			return nil, err
		}
		return &Response{
			Text:            res.Text,
			ChunksProcessed: res.Chunks,
			FallbackChunks:  res.FallbackChunks,
			DetectedSource:  res.DetectedSource,
		}, nil

	case ActionChunkForSms:
		segments, err := h.svc.ChunkForSms(req.Text, req.MaxLength)
		if err != nil {
			return nil, err
		}
		return &Response{Segments: segments}, nil

	case ActionStartDocumentJob:
		res, err := h.svc.StartDocumentJob(ctx, jobs.StartRequest{
			MessageKey:     req.MessageKey,
			TargetLanguage: req.TargetLang,
			SourceLanguage: req.SourceLang,
			Content:        req.Document,
			MimeType:       req.MimeType,
			FileName:       req.FileName,
		})
		if err != nil {
			return nil, err
		}
		return &Response{Job: res.Job, Cached: res.Cached, Created: res.Created}, nil

	case ActionPollJobStatus:
		job, err := h.svc.PollJobStatus(ctx, req.JobID)
		if err != nil {
			return nil, err
		}
		return &Response{Job: job}, nil

	case ActionDownloadURL:
		url, err := h.svc.DownloadURL(ctx, req.JobID)
		if err != nil {
			return nil, err
		}
		return &Response{DownloadURL: url}, nil
	}
	return nil, errs.Newf(errs.Validation, "unknown action %q", req.Action)
}

// validateRequest checks the fields each action needs.
func validateRequest(req Request) error {
	switch req.Action {
	case "":
		return errs.New(errs.Validation, "action is required")
	case ActionPollJobStatus, ActionDownloadURL:
		if req.JobID == "" {
			return errs.New(errs.Validation, "jobId is required")
		}
	case ActionStartDocumentJob:
		if len(req.Document) == 0 {
			return errs.New(errs.Validation, "document is required")
		}
	}
	return nil
}

func errorResponse(err error) *Response {
	kind := errs.KindOf(err)
	msg := errs.UserMessage(err)
	if kind == errs.Validation || kind == errs.UnsupportedLanguagePair {
		msg = fmt.Sprintf("%s (%v)", msg, err)
	}
	return &Response{Error: msg, ErrorKind: kind.String()}
}
