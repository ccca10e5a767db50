// Package sms packs text into numbered, length-bounded SMS segments.
package sms

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MimeLyc/seabridge/internal/errs"
)

const (
	// DefaultMaxLength is the single-SMS character ceiling.
	DefaultMaxLength = 160
	// MinLength leaves room for a "(99/99) " prefix plus some payload.
	MinLength = 16
)

// Segment is one SMS-ready part. Text includes the numbering prefix when
// TotalCount > 1.
type Segment struct {
	Index      int    `json:"index"`
	TotalCount int    `json:"total_count"`
	Text       string `json:"text"`
}

// Payload returns Text without its numbering prefix.
func (s Segment) Payload() string {
	if s.TotalCount <= 1 {
		return s.Text
	}
	return strings.TrimPrefix(s.Text, prefix(s.Index+1, s.TotalCount))
}

// Pack greedily packs whole words into segments of at most maxLength runes.
// Words longer than a segment's payload width are cut at rune level; no
// word is dropped.
func Pack(text string, maxLength int) ([]Segment, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	if maxLength < MinLength {
		return nil, errs.Newf(errs.Validation, "sms max length %d is below minimum %d", maxLength, MinLength).
			WithContext("max_length", maxLength)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	if joined := strings.Join(words, " "); utf8.RuneCountInString(joined) <= maxLength {
		return []Segment{{Index: 0, TotalCount: 1, Text: joined}}, nil
	}

	// The prefix width depends on the segment count, which depends on the
	// prefix width. Grow the reservation until the count settles.
	total := 2
	var bodies []string
	for {
		reserved := utf8.RuneCountInString(prefix(total, total))
		bodies = packWords(words, maxLength-reserved)
		if utf8.RuneCountInString(prefix(len(bodies), len(bodies))) <= reserved {
			break
		}
		total = len(bodies)
	}

	segments := make([]Segment, len(bodies))
	for i, body := range bodies {
		segments[i] = Segment{
			Index:      i,
			TotalCount: len(bodies),
			Text:       prefix(i+1, len(bodies)) + body,
		}
	}
	return segments, nil
}

func packWords(words []string, width int) []string {
	var out []string
	cur := ""
	curLen := 0

	for _, w := range words {
		wl := utf8.RuneCountInString(w)
		if wl > width {
			if cur != "" {
				out = append(out, cur)
			}
			r := []rune(w)
			for len(r) > width {
				out = append(out, string(r[:width]))
				r = r[width:]
			}
			cur, curLen = string(r), len(r)
			continue
		}
		if cur == "" {
			cur, curLen = w, wl
			continue
		}
		if curLen+1+wl > width {
			out = append(out, cur)
			cur, curLen = w, wl
			continue
		}
		cur += " " + w
		curLen += 1 + wl
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func prefix(i, n int) string {
	return fmt.Sprintf("(%d/%d) ", i, n)
}
