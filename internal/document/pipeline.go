// Package document translates long documents by splitting them into
// chunks, translating the chunks concurrently and reassembling them in
// order.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/seabridge/internal/chunker"
	"github.com/MimeLyc/seabridge/internal/errs"
	"github.com/MimeLyc/seabridge/internal/provider"
	"github.com/MimeLyc/seabridge/pkg/log"
)

const DefaultConcurrency = 4

type Request struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language,omitempty"`
	// MaxChunkSize overrides the pipeline's chunk size when positive.
	MaxChunkSize int `json:"max_chunk_size,omitempty"`
}

type Result struct {
	Text string `json:"text"`
	// Chunks is the number of chunks translated.
	Chunks int `json:"chunks"`
	// FallbackChunks is how many chunks the fallback provider produced.
	FallbackChunks int    `json:"fallback_chunks"`
	DetectedSource string `json:"detected_source,omitempty"`
}

type Pipeline struct {
	selector     *provider.Selector
	concurrency  int
	maxChunkSize int
}

type Option func(*Pipeline)

func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithMaxChunkSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxChunkSize = n
		}
	}
}

func NewPipeline(selector *provider.Selector, opts ...Option) *Pipeline {
	p := &Pipeline{
		selector:     selector,
		concurrency:  DefaultConcurrency,
		maxChunkSize: chunker.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TranslateDocument translates req.Text chunk by chunk. The output keeps
// the original chunk order regardless of completion order. If any chunk
// fails on both providers the whole document fails and no partial text is
// returned.
func (p *Pipeline) TranslateDocument(ctx context.Context, req Request) (Result, error) {
	if _, _, err := provider.NormalizePair(req.SourceLanguage, req.TargetLanguage); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.Text) == "" {
		return Result{}, nil
	}

	size := p.chunkSize(req.MaxChunkSize)
	chunks := chunker.Split(req.Text, size)
	batch := p.selector.NewBatch()

	var detected string
	if src, _ := provider.NormalizeLanguage(req.SourceLanguage); src == "" {
		if d := batch.DetectSource(req.Text); d.Language != "" {
			detected = d.Language
		}
	}

	log.Debug("Translating document: %d chunks of at most %d characters", len(chunks), size)

	out := make([]chunker.Chunk, len(chunks))
	tiers := make([]provider.Tier, len(chunks))
	all := make([]int, len(chunks))
	for i := range chunks {
		all[i] = i
	}
	if err := p.translateChunks(ctx, batch, req, chunks, all, out, tiers); err != nil {
		return Result{}, err
	}

	// Once the primary is found unreachable the whole document moves to the
	// fallback, including chunks the primary finished before the outage.
	if batch.PrimaryDown() {
		var redo []int
		for i, t := range tiers {
			if t == provider.TierPrimary {
				redo = append(redo, i)
			}
		}
		if len(redo) > 0 {
			log.Info("Re-translating %d chunks on the fallback provider after primary outage", len(redo))
			if err := p.translateChunks(ctx, batch, req, chunks, redo, out, tiers); err != nil {
				return Result{}, err
			}
		}
	}

	res := Result{
		Text:           chunker.Reassemble(out),
		Chunks:         len(chunks),
		DetectedSource: detected,
	}
	for _, t := range tiers {
		if t == provider.TierFallback {
			res.FallbackChunks++
		}
	}
	if res.FallbackChunks > 0 {
		log.Info("Document translated with %d/%d chunks from fallback provider", res.FallbackChunks, res.Chunks)
	}
	return res, nil
}

// translateChunks translates chunks[idx] concurrently into out and tiers,
// which are indexed like chunks.
func (p *Pipeline) translateChunks(ctx context.Context, batch *provider.Batch, req Request,
	chunks []chunker.Chunk, idx []int, out []chunker.Chunk, tiers []provider.Tier) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, i := range idx {
		i := i
		c := chunks[i]
		g.Go(func() error {
			res, err := batch.Translate(gctx, provider.Request{
				Content:        c.Text,
				TargetLanguage: req.TargetLanguage,
				SourceLanguage: req.SourceLanguage,
			})
			if err != nil {
				return &chunkError{index: c.Index, err: err}
			}
			out[i] = chunker.Chunk{Index: c.Index, TotalCount: c.TotalCount, Text: res.Text}
			tiers[i] = res.ProviderUsed
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		return nil
	}
	var ce *chunkError
	if !errors.As(err, &ce) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	switch errs.KindOf(ce.err) {
	case errs.PayloadTooLarge, errs.UnsupportedLanguagePair:
		return ce.err
	}
	return errs.Wrap(ce.err, errs.PartialBatchFailure,
		fmt.Sprintf("chunk %d of %d could not be translated", ce.index+1, len(chunks))).
		WithContext("chunk_index", ce.index).
		WithContext("chunk_count", len(chunks))
}

// chunkSize never exceeds the selector's synchronous ceiling.
func (p *Pipeline) chunkSize(override int) int {
	size := p.maxChunkSize
	if override > 0 {
		size = override
	}
	if limit := p.selector.MaxPayload(); size > limit {
		size = limit
	}
	return size
}

type chunkError struct {
	index int
	err   error
}

func (e *chunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.index, e.err)
}

func (e *chunkError) Unwrap() error {
	return e.err
}
