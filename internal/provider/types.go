// Package provider selects between a fast local translation provider and a
// cloud fallback for synchronous text translation.
package provider

import (
	"context"
	"errors"
)

// Tier identifies which provider produced a translation.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

var (
	// ErrUnreachable marks an outright outage (connection refused, DNS
	// failure) as opposed to a per-request failure.
	ErrUnreachable = errors.New("provider unreachable")
	// ErrMalformedResponse marks a response that could not be used.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// TranslationProvider is one translation engine.
type TranslationProvider interface {
	Name() string
	// TranslateText translates text into targetLang. sourceLang is empty
	// when unknown.
	TranslateText(ctx context.Context, text, targetLang, sourceLang string) (string, error)
}

// Request is a single synchronous translation request.
// An empty or "auto" SourceLanguage means unknown.
type Request struct {
	Content        string `json:"content"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language,omitempty"`
}

// Result is returned to callers and never persisted.
type Result struct {
	Text         string `json:"text"`
	ProviderUsed Tier   `json:"provider_used"`
	// Confidence is the language-detection confidence, set only when the
	// source language was detected rather than given.
	Confidence     *float64 `json:"confidence,omitempty"`
	DetectedSource string   `json:"detected_source,omitempty"`
}
