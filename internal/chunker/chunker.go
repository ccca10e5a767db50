// Package chunker splits documents into size-bounded chunks on paragraph
// and sentence boundaries, and reassembles them in index order.
package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxSize is the default maximum chunk size in runes.
const DefaultMaxSize = 12000

// ParagraphSeparator joins paragraphs inside a chunk and chunks on reassembly.
const ParagraphSeparator = "\n\n"

var blankLine = regexp.MustCompile(`\r?\n[ \t]*(?:\r?\n[ \t]*)+`)

// Chunk is one ordered fragment of a document.
type Chunk struct {
	Index      int    `json:"index"`
	TotalCount int    `json:"total_count"`
	Text       string `json:"text"`
}

// Split breaks text into chunks of at most maxSize runes.
// Paragraphs are accumulated greedily. A paragraph longer than maxSize is
// split on sentence boundaries. A single sentence longer than maxSize is
// kept whole.
func Split(text string, maxSize int) []Chunk {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}

	var texts []string
	var buf string
	flush := func() {
		if s := trimChunk(buf); s != "" {
			texts = append(texts, s)
		}
		buf = ""
	}

	for _, para := range Paragraphs(text) {
		if runeLen(para) > maxSize {
			flush()
			for _, sentence := range Sentences(para) {
				if buf != "" && runeLen(trimChunk(buf+sentence)) > maxSize {
					flush()
				}
				buf += sentence
			}
			buf = trimChunk(buf)
			continue
		}

		if buf == "" {
			buf = para
			continue
		}
		if runeLen(buf)+runeLen(ParagraphSeparator)+runeLen(para) > maxSize {
			flush()
			buf = para
			continue
		}
		buf += ParagraphSeparator + para
	}
	flush()

	chunks := make([]Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = Chunk{Index: i, TotalCount: len(texts), Text: t}
	}
	return chunks
}

// Reassemble joins chunk texts in index order, regardless of slice order.
func Reassemble(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	parts := make([]string, len(ordered))
	for i, c := range ordered {
		parts[i] = c.Text
	}
	return strings.Join(parts, ParagraphSeparator)
}

// Paragraphs splits text on blank lines and drops empty paragraphs.
func Paragraphs(text string) []string {
	raw := blankLine.Split(text, -1)
	ret := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = trimChunk(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}

// Sentences splits a paragraph after sentence terminators. Each returned
// sentence keeps its trailing whitespace so concatenating them reproduces
// the input exactly.
func Sentences(para string) []string {
	var ret []string
	runes := []rune(para)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !isTerminator(r) {
			continue
		}
		j := i + 1
		for j < len(runes) && isCloser(runes[j]) {
			j++
		}
		switch {
		case j == len(runes):
			i = j - 1
			continue
		case unicode.IsSpace(runes[j]):
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
		case !isWideTerminator(r):
			// "3.5" or "e.g.x" are not sentence ends
			continue
		}
		ret = append(ret, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		ret = append(ret, string(runes[start:]))
	}
	return ret
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?':
		return true
	}
	return isWideTerminator(r)
}

func isWideTerminator(r rune) bool {
	switch r {
	case '。', '！', '？':
		return true
	}
	return false
}

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’', '」', '』':
		return true
	}
	return false
}

// trimChunk drops trailing whitespace and leading blank lines while keeping
// leading indentation of the first line.
func trimChunk(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	return strings.TrimLeft(s, "\r\n")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
