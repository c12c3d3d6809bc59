package models

import "errors"

// ErrorKind classifies failures of the pipeline.
type ErrorKind string

const (
	KindUnknown       ErrorKind = "unknown"
	KindTransport     ErrorKind = "transport"      // HTTP or network failure.
	KindProvider      ErrorKind = "provider"       // The remote service answered with a non-success status.
	KindParse         ErrorKind = "parse"          // The response had an unexpected shape.
	KindGeolocation   ErrorKind = "geolocation"    // The reference position could not be determined.
	KindConfiguration ErrorKind = "configuration"  // A required setting is missing or invalid.
	KindLimitExceeded ErrorKind = "limit_exceeded" // The batch is larger than the configured maximum.
	KindValidation    ErrorKind = "validation"     // The caller input is unusable.
)

// Kinded is implemented by errors that know their ErrorKind.
type Kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of the first error in err's chain that implements Kinded.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var kinded Kinded
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindUnknown
}

// KindError is a sentinel error with a fixed kind.
type KindError struct {
	kind ErrorKind
	msg  string
}

// NewKindError creates a sentinel error of the given kind.
func NewKindError(kind ErrorKind, msg string) *KindError {
	return &KindError{kind: kind, msg: msg}
}

func (e *KindError) Error() string { return e.msg }

// Kind implements Kinded.
func (e *KindError) Kind() ErrorKind { return e.kind }
