package errorbank

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

// AppError is an error with a transport-independent category.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option configures an AppError.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(e *AppError) { e.setDetail(key, value) }
}

// WithField names the offending input field.
func WithField(name string) Option {
	return WithDetail("field", name)
}

// WithDetails merges multiple detail values.
func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		for k, v := range details {
			e.setDetail(k, v)
		}
	}
}

func (e *AppError) setDetail(key string, value any) {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
}

// New builds an AppError of kind. An empty message defaults to the kind name.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	e := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// StatusCode is the HTTP status for the error's kind.
func (e *AppError) StatusCode() int {
	return lookup(e.Kind()).http
}

// GRPCCode is the gRPC code for the error's kind.
func (e *AppError) GRPCCode() codes.Code {
	return lookup(e.Kind()).grpc
}

func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Unprocessable is for well-formed input that breaks a business rule.
func Unprocessable(message string, opts ...Option) *AppError {
	return New(KindUnprocessableEntity, message, opts...)
}

func Unavailable(message string, opts ...Option) *AppError {
	return New(KindUnavailable, message, opts...)
}

func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// Is reports whether err carries an AppError of kind.
func Is(err error, kind Kind) bool {
	var e *AppError
	return errors.As(err, &e) && e.kind == kind
}

// From returns the AppError inside err. Context errors become Timeout or
// Canceled; anything else is wrapped as Internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var e *AppError
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(KindTimeout, "request timed out", WithCause(err))
	case errors.Is(err, context.Canceled):
		return New(KindCanceled, "request canceled", WithCause(err))
	}
	return Internal("internal error", WithCause(err))
}
