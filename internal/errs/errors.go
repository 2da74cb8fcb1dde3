// Package errs defines the failure taxonomy shared by the normalization and
// inference packages.
//
// Setup and schema failures are deterministic: they describe a broken
// environment or mismatched artifacts and are never retried.
package errs

import (
	"errors"
	"fmt"
)

// Resource names the on-disk dependency that failed to load.
type Resource string

const (
	ResourceStopwords  Resource = "stopwords"
	ResourceVectorizer Resource = "vectorizer"
	ResourceModel      Resource = "model"
)

// ErrEmptyInput is returned by the outer surfaces when a review has no text.
// The core itself accepts empty input and normalizes it to an empty string.
var ErrEmptyInput = errors.New("review text is empty")

// SetupError reports that a required resource could not be loaded.
type SetupError struct {
	Resource Resource
	Path     string
	Err      error
}

func (e *SetupError) Error() string {
	var what string
	switch e.Resource {
	case ResourceStopwords:
		what = "stopword corpus unavailable"
	case ResourceVectorizer:
		what = "vectorizer artifact unavailable"
	case ResourceModel:
		what = "model artifact unavailable"
	default:
		what = string(e.Resource) + " unavailable"
	}
	if e.Path != "" {
		what += " (" + e.Path + ")"
	}
	if e.Err != nil {
		return what + ": " + e.Err.Error()
	}
	return what
}

func (e *SetupError) Unwrap() error { return e.Err }

// Setup wraps err as a SetupError for resource.
func Setup(resource Resource, path string, err error) error {
	return &SetupError{Resource: resource, Path: path, Err: err}
}

// SchemaMismatchError reports artifact or version skew: a class index outside
// the label scheme, or vectors whose dimension the model does not expect.
type SchemaMismatchError struct {
	Detail string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Detail
}

// SchemaMismatch builds a SchemaMismatchError from a format string.
func SchemaMismatch(format string, args ...any) error {
	return &SchemaMismatchError{Detail: fmt.Sprintf(format, args...)}
}

// IsSetup reports whether err is a SetupError, returning it when it is.
func IsSetup(err error) (*SetupError, bool) {
	var se *SetupError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsSchemaMismatch reports whether err is a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}
