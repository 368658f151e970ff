package domain

import (
	"errors"
	"fmt"
)

// Base error kinds. Match with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrConfiguration  = errors.New("configuration error")
	ErrProvider       = errors.New("provider error")
	ErrMalformedInput = errors.New("malformed input")
	ErrConflict       = errors.New("conflict")
)

// ErrorKind categorises an AuditError.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindConfiguration  ErrorKind = "configuration"
	KindProvider       ErrorKind = "provider"
	KindMalformedInput ErrorKind = "malformed_input"
	KindConflict       ErrorKind = "conflict"
)

// AuditError is the structured error returned across the audit pipeline.
type AuditError struct {
	Kind    ErrorKind
	Op      string // operation that failed, e.g. "submit", "poll", "load_ledger"
	Subject string // repo, provider, focus or file the error is about
	Err     error
}

func (e *AuditError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Subject, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }

// Is implements errors.Is against the base kinds.
func (e *AuditError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrProvider:
		return e.Kind == KindProvider
	case ErrMalformedInput:
		return e.Kind == KindMalformedInput
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

func newAuditError(kind ErrorKind, op, subject string, err error) *AuditError {
	return &AuditError{Kind: kind, Op: op, Subject: subject, Err: err}
}

func NewValidationError(op, subject string, err error) *AuditError {
	return newAuditError(KindValidation, op, subject, err)
}

func NewConfigurationError(op, subject string, err error) *AuditError {
	return newAuditError(KindConfiguration, op, subject, err)
}

func NewProviderError(op, subject string, err error) *AuditError {
	return newAuditError(KindProvider, op, subject, err)
}

func NewMalformedInputError(op, subject string, err error) *AuditError {
	return newAuditError(KindMalformedInput, op, subject, err)
}

func NewConflictError(op, subject string, err error) *AuditError {
	return newAuditError(KindConflict, op, subject, err)
}

// KindOf returns the kind of err, or "" when err is not an AuditError.
func KindOf(err error) ErrorKind {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
