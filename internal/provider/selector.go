package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/pkg/log"
)

// DefaultMaxPayload is the synchronous size ceiling in runes.
const DefaultMaxPayload = 12000

// Selector runs a request against the primary provider and retries once on
// the fallback provider when the primary fails. It holds no per-request
// state and is safe for concurrent use.
type Selector struct {
	primary        TranslationProvider
	fallback       TranslationProvider
	maxPayload     int
	primaryTimeout time.Duration
	detect         Detector
}

type Option func(*Selector)

// WithMaxPayload sets the synchronous size ceiling in runes.
func WithMaxPayload(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

// WithPrimaryTimeout bounds each primary call so a slow local provider
// fails over quickly.
func WithPrimaryTimeout(d time.Duration) Option {
	return func(s *Selector) {
		s.primaryTimeout = d
	}
}

func WithDetector(d Detector) Option {
	return func(s *Selector) {
		if d != nil {
			s.detect = d
		}
	}
}

func NewSelector(primary, fallback TranslationProvider, opts ...Option) *Selector {
	s := &Selector{
		primary:    primary,
		fallback:   fallback,
		maxPayload: DefaultMaxPayload,
		detect:     DetectLanguage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxPayload returns the synchronous size ceiling in runes.
func (s *Selector) MaxPayload() int {
	return s.maxPayload
}

// Translate translates req, falling back to the secondary provider on any
// primary failure. The result is tagged with the tier that produced it.
func (s *Selector) Translate(ctx context.Context, req Request) (Result, error) {
	return s.translate(ctx, req, nil)
}

// NewBatch returns a view for translating the chunks of one document.
func (s *Selector) NewBatch() *Batch {
	return &Batch{selector: s}
}

// Batch shares primary-outage knowledge across the calls of one document.
// Once the primary is found unreachable, later calls go straight to the
// fallback so the document is translated by one tier uniformly.
type Batch struct {
	selector    *Selector
	primaryDown atomic.Bool
	detection   *Detection
}

func (b *Batch) Translate(ctx context.Context, req Request) (Result, error) {
	return b.selector.translate(ctx, req, b)
}

// DetectSource detects the language of a whole document once. Later calls
// with an unknown source reuse this detection instead of detecting per chunk.
// It must be called before the batch is shared between goroutines.
func (b *Batch) DetectSource(text string) Detection {
	d := b.selector.detect(text)
	b.detection = &d
	return d
}

// PrimaryDown reports whether the primary was found unreachable.
func (b *Batch) PrimaryDown() bool {
	return b.primaryDown.Load()
}

type prepared struct {
	content   string
	source    string
	target    string
	detection *Detection
}

func (s *Selector) prepare(req Request, b *Batch) (prepared, error) {
	src, tgt, err := NormalizePair(req.SourceLanguage, req.TargetLanguage)
	if err != nil {
		return prepared{}, err
	}

	if n := utf8.RuneCountInString(req.Content); n > s.maxPayload {
		return prepared{}, errs.Newf(errs.PayloadTooLarge, "content has %d characters, limit is %d", n, s.maxPayload).
			WithContext("limit", s.maxPayload)
	}

	p := prepared{content: req.Content, source: src, target: tgt}
	if src == "" && strings.TrimSpace(req.Content) != "" {
		var d Detection
		if b != nil && b.detection != nil {
			d = *b.detection
		} else {
			d = s.detect(req.Content)
		}
		if d.Language != "" {
			p.detection = &d
			if d.Reliable && d.Language != baseOf(tgt) {
				p.source = d.Language
			}
		}
	}
	return p, nil
}

func (s *Selector) translate(ctx context.Context, req Request, b *Batch) (Result, error) {
	p, err := s.prepare(req, b)
	if err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(p.content) == "" {
		return Result{Text: "", ProviderUsed: TierPrimary}, nil
	}

	var primaryErr error
	if s.primary != nil && (b == nil || !b.primaryDown.Load()) {
		text, err := s.callPrimary(ctx, p)
		if err == nil {
			return p.result(text, TierPrimary), nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		primaryErr = err
		if b != nil && errors.Is(err, ErrUnreachable) && b.primaryDown.CompareAndSwap(false, true) {
			log.Warn("Primary provider %s unreachable, switching batch to fallback: %v", s.primary.Name(), err)
		} else {
			log.Warn("Primary provider failed, falling back: %v", err)
		}
	}

	if s.fallback == nil {
		return Result{}, errs.Wrap(primaryErr, errs.ProviderUnavailable, "primary provider failed and no fallback is configured").
			WithContext("target", p.target)
	}

	text, err := call(ctx, s.fallback, p)
	if err != nil {
		return Result{}, errs.Wrap(errors.Join(primaryErr, err), errs.ProviderUnavailable, "primary and fallback providers failed").
			WithContext("target", p.target)
	}
	return p.result(text, TierFallback), nil
}

func (s *Selector) callPrimary(ctx context.Context, p prepared) (string, error) {
	if s.primaryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.primaryTimeout)
		defer cancel()
	}
	return call(ctx, s.primary, p)
}

func call(ctx context.Context, prov TranslationProvider, p prepared) (string, error) {
	text, err := prov.TranslateText(ctx, p.content, p.target, p.source)
	if err != nil {
		return "", fmt.Errorf("%s: %w", prov.Name(), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w: empty translation", prov.Name(), ErrMalformedResponse)
	}
	return text, nil
}

func (p prepared) result(text string, tier Tier) Result {
	r := Result{Text: text, ProviderUsed: tier}
	if p.detection != nil {
		conf := p.detection.Confidence
		r.Confidence = &conf
		r.DetectedSource = p.detection.Language
	}
	return r
}

func baseOf(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}
