package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure kinds reported on the wire.
// The numeric value is part of the protocol.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindRepositoryDoesNotExist
	KindAppRegistrationFailed
	KindIncorrectAppToken
	KindOpenStorageFailed
	KindIncorrectStorageToken
	KindThingNotFound
	KindThingOperationFailed
)

var kindNames = map[ErrorKind]string{
	KindNone:                   "None",
	KindRepositoryDoesNotExist: "RepositoryDoesNotExist",
	KindAppRegistrationFailed:  "AppRegistrationFailed",
	KindIncorrectAppToken:      "IncorrectAppToken",
	KindOpenStorageFailed:      "OpenStorageFailed",
	KindIncorrectStorageToken:  "IncorrectStorageToken",
	KindThingNotFound:          "ThingNotFound",
	KindThingOperationFailed:   "ThingOperationFailed",
}

// String returns the symbolic name of the kind.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Valid reports whether k is a known failure kind.
func (k ErrorKind) Valid() bool {
	_, ok := kindNames[k]
	return ok && k != KindNone
}

// DomainError represents a failure with a wire-visible kind.
type DomainError struct {
	Kind    ErrorKind
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any *DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewDomainError creates a new DomainError with the given kind and message.
func NewDomainError(kind ErrorKind, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Kind:    e.Kind,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Kind:    e.Kind,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// WireMessage is the message sent to clients. The cause stays in the
// server logs.
func (e *DomainError) WireMessage() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// KindOf extracts the kind of err. Errors that are not a *DomainError
// report fallback.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return fallback
}

var (
	ErrRepositoryDoesNotExist = NewDomainError(KindRepositoryDoesNotExist, "repository does not exist")
	ErrAppRegistrationFailed  = NewDomainError(KindAppRegistrationFailed, "app registration failed")
	ErrIncorrectAppToken      = NewDomainError(KindIncorrectAppToken, "incorrect app token")
	ErrOpenStorageFailed      = NewDomainError(KindOpenStorageFailed, "open storage failed")
	ErrIncorrectStorageToken  = NewDomainError(KindIncorrectStorageToken, "incorrect storage token")
	ErrThingNotFound          = NewDomainError(KindThingNotFound, "thing not found")
	ErrThingOperationFailed   = NewDomainError(KindThingOperationFailed, "thing operation failed")

	// ErrRepositoryNotFound is returned when durable lookup of a
	// repository fails. It reports as RepositoryDoesNotExist.
	ErrRepositoryNotFound = NewDomainError(KindRepositoryDoesNotExist, "repository not found")
)
