package models

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtraction        = errors.New("extraction failed")
	ErrEmbedding         = errors.New("embedding failed")
	ErrStore             = errors.New("store failed")
	ErrValidation        = errors.New("validation failed")
)

// UnsupportedFormatError names the extension the strict extractor refused.
type UnsupportedFormatError struct {
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format for ingestion: %s", e.Extension)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// ValidationError names the invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Kind identifies the class of an error for callers that map errors to responses.
type Kind string

const (
	KindNone              Kind = ""
	KindValidation        Kind = "validation"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindExtraction        Kind = "extraction"
	KindEmbedding         Kind = "embedding"
	KindStore             Kind = "store"
	KindInternal          Kind = "internal"
)

// KindOf returns the kind of err. Validation and format errors win over
// collaborator kinds when an error chain carries several.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrEmbedding):
		return KindEmbedding
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindInternal
	}
}
