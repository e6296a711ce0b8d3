package memegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// Kind classifies a generation failure.
type Kind string

const (
	KindUpstream    Kind = "upstream"
	KindMalformed   Kind = "malformed"
	KindNoTemplates Kind = "no_templates"
	KindNotFound    Kind = "not_found"
)

// ErrNoTemplates is returned when exclusions leave no template to choose from.
var ErrNoTemplates = &Error{Kind: KindNoTemplates, Message: "Error: No more memes available"}

// Error is a tagged generation failure. Message is safe to show to the user.
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

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNoTemplates) works
// on wrapped copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Err == nil
}

func upstreamError(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func malformedError(message string) *Error {
	return &Error{Kind: KindMalformed, Message: message}
}

func notFoundError(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("Meme with ID %s not found in meme list", id)}
}

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	Upstream string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d %s", e.Upstream, e.Code, http.StatusText(e.Code))
}

// isTransient reports whether an upstream call is worth retrying.
func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
