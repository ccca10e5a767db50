// Package errs defines the typed error taxonomy returned across the
// translation boundary. Callers switch on Kind to render user-facing
// messages without inspecting provider internals.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	Unknown Kind = iota
	ProviderUnavailable
	UnsupportedLanguagePair
	PayloadTooLarge
	JobNotFound
	DownloadExpired
	PartialBatchFailure
	Validation
	Storage
)

func (k Kind) String() string {
	switch k {
	case ProviderUnavailable:
		return "ProviderUnavailable"
	case UnsupportedLanguagePair:
		return "UnsupportedLanguagePair"
	case PayloadTooLarge:
		return "PayloadTooLarge"
	case JobNotFound:
		return "JobNotFound"
	case DownloadExpired:
		return "DownloadExpired"
	case PartialBatchFailure:
		return "PartialBatchFailure"
	case Validation:
		return "Validation"
	case Storage:
		return "Storage"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(cause error, kind Kind, message string) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, "context: "+strings.Join(ctxParts, ", "))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Is reports whether any error in err's chain is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == kind {
			return true
		}
		err = e.Cause
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// UserMessage returns text suitable for showing to a parent or teacher.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case ProviderUnavailable:
		return "Translation is temporarily unavailable. Please try again in a few minutes."
	case UnsupportedLanguagePair:
		return "This language combination is not supported."
	case PayloadTooLarge:
		return "The text is too long to translate in one request. Try sending it as a document."
	case JobNotFound:
		return "This translation job could not be found. It may have expired."
	case DownloadExpired:
		return "The translated document link has expired. Please request the translation again."
	case PartialBatchFailure:
		return "Part of the document could not be translated, so no translation was produced."
	case Validation:
		return "The request is invalid. Please check the input and try again."
	case Storage:
		return "The translated document could not be stored or retrieved."
	default:
		return "Something went wrong while translating."
	}
}
