package provider

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"github.com/MimeLyc/seabridge/internal/errs"
)

// Detection is the outcome of source language detection.
type Detection struct {
	Language   string
	Confidence float64
	Reliable   bool
}

// Detector guesses the language of a text.
type Detector func(text string) Detection

// DetectLanguage detects the language of text with whatlanggo and returns
// its ISO 639-1 code, or the ISO 639-3 code when no two-letter code exists.
func DetectLanguage(text string) Detection {
	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		code = info.Lang.Iso6393()
	}
	if code == "" {
		return Detection{}
	}
	return Detection{
		Language:   code,
		Confidence: info.Confidence,
		Reliable:   info.IsReliable(),
	}
}

// NormalizeLanguage canonicalizes a BCP 47 code. Empty and "auto" return
// "" (unknown).
func NormalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "auto") {
		return "", nil
	}
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return "", errs.Wrap(err, errs.UnsupportedLanguagePair, "unrecognized language code").
			WithContext("code", code)
	}
	return tag.String(), nil
}

// NormalizePair validates a source/target pair. source may be unknown.
func NormalizePair(source, target string) (string, string, error) {
	tgt, err := NormalizeLanguage(target)
	if err != nil {
		return "", "", err
	}
	if tgt == "" {
		return "", "", errs.New(errs.UnsupportedLanguagePair, "target language is required")
	}
	src, err := NormalizeLanguage(source)
	if err != nil {
		return "", "", err
	}
	if src != "" && src == tgt {
		return "", "", errs.New(errs.UnsupportedLanguagePair, "source and target language must differ").
			WithContext("language", tgt)
	}
	return src, tgt, nil
}
