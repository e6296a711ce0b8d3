package geolocation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

var (
	// ErrMalformedResponse marks a provider answer that could not be understood.
	ErrMalformedResponse = errors.New("malformed geolocation response")
	// ErrLookupFailed marks a well-formed answer that carries no location.
	ErrLookupFailed = errors.New("geolocation lookup failed")
	ErrInvalidIP    = errors.New("invalid ip address")
)

// StatusError is a non-200 HTTP answer from a provider.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geolocation provider returned %d %s", e.Code, http.StatusText(e.Code))
}

// IsTransient reports whether a provider error is worth retrying: network
// failures, truncated bodies, 429 and 5xx answers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrLookupFailed) || errors.Is(err, ErrInvalidIP) {
		return false
	}
	if errors.Is(err, context.Canceled) {
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
