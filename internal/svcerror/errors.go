package svcerror

import (
	"errors"
	"fmt"
)

// Kind classifies a service error so that callers and the HTTP layer can
// react without string matching.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindInvalidState   Kind = "invalid_state"
	KindPrecondition   Kind = "precondition_failed"
	KindRemoteRejected Kind = "remote_rejected"
	KindTransient      Kind = "transient_error"
	KindConflict       Kind = "conflict"
)

// Error is the service-level error type. Every error surfaced by the
// consent, token and exchange services is one of these; lower-level causes
// are kept on Err for wrapping.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the kind of a service error, or "" for foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// Validation reports a malformed or incomplete request. Never retried.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown id or reference.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidState reports a transition that is not legal from the record's
// current status. The record is left untouched.
func InvalidState(format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// Precondition reports a token or exchange action attempted on a record that
// is not granted.
func Precondition(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

// RemoteRejected reports that the counter-participant declined the exchange.
// The consent remains granted for manual remediation.
func RemoteRejected(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRemoteRejected, Message: fmt.Sprintf(format, args...)}
}

// Transient reports a network or timeout failure eligible for caller-driven
// retry with a fresh token.
func Transient(message string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: cause}
}

// Conflict reports that an optimistic update lost the race: the stored
// status no longer matches what the caller read.
func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}
