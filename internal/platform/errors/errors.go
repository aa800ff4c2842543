package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation is a malformed or missing request field (HTTP 400).
	KindValidation Kind = "validation"
	// KindAdmission is an origin or rate-limit rejection.
	KindAdmission Kind = "admission"
	// KindUpstream is a provider failure before any fragment was forwarded.
	KindUpstream Kind = "upstream"
	// KindMidStream is a failure after fragments were already forwarded.
	KindMidStream Kind = "midstream"
	// KindConfig is a startup configuration problem (fatal).
	KindConfig Kind = "config"
	// KindBusy is a submit attempted while another stream is in flight.
	KindBusy Kind = "busy"
	// KindCanceled is a caller that went away mid-request.
	KindCanceled Kind = "canceled"
	KindIO       Kind = "io"
	KindInternal Kind = "internal"
)

type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func New(kind Kind, message string, cause error) error {
	return &AppError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

func NewValidation(message string) error {
	return New(KindValidation, message, nil)
}

func NewAdmission(message string) error {
	return New(KindAdmission, message, nil)
}

func NewUpstream(message string, cause error) error {
	return New(KindUpstream, message, cause)
}

func NewMidStream(message string, cause error) error {
	return New(KindMidStream, message, cause)
}

func NewConfig(message string) error {
	return New(KindConfig, message, nil)
}

func NewCanceled(message string, cause error) error {
	return New(KindCanceled, message, cause)
}

func NewIO(message string, cause error) error {
	return New(KindIO, message, cause)
}

func NewInternal(message string, cause error) error {
	return New(KindInternal, message, cause)
}

// KindOf returns the kind of the first AppError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// MessageOf returns the Message of the first AppError in err's chain.
// It falls back to err.Error() for foreign errors.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// As is errors.As, re-exported so callers need only this package.
func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func IsValidation(err error) bool { return Is(err, KindValidation) }

func IsConfig(err error) bool { return Is(err, KindConfig) }
