// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package dial

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("dial: application not found")
	ErrForbidden           = errors.New("dial: access forbidden")
	ErrUpstreamUnavailable = errors.New("dial: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("dial: unexpected response status")
	ErrBadResponse         = errors.New("dial: invalid response format or malformed data")
	ErrTimeout             = errors.New("dial: request timed out")
	ErrNoApplicationURL    = errors.New("dial: sink has no application url")
)

// DIALError wraps a sentinel error with request context.
type DIALError struct {
	Sentinel  error
	Operation string
	Status    int
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *DIALError) Error() string {
	msg := fmt.Sprintf("dial: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DIALError) Unwrap() error {
	return e.Sentinel
}

// wrapError classifies a transport error or an HTTP status into a DIALError.
func wrapError(op string, err error, status int) error {
	var sentinel error
	switch {
	case err != nil:
		var netErr net.Error
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			sentinel = ErrTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			sentinel = ErrTimeout
		default:
			sentinel = ErrUpstreamUnavailable
		}
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		sentinel = ErrForbidden
	case status >= 500:
		sentinel = ErrUpstreamError
	default:
		sentinel = ErrBadResponse
	}
	return &DIALError{Sentinel: sentinel, Operation: op, Status: status, Err: err}
}
