package resourceapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrMissingUserID is returned when an action info payload names no user.
	ErrMissingUserID = errors.New("resourceapi: action info has no user id")

	// ErrAbsoluteURL is returned when a bearer call is aimed outside the API base.
	ErrAbsoluteURL = errors.New("resourceapi: resource must be a path relative to the API base")

	// ErrForeignHost is returned when an absolute action URI names another server.
	ErrForeignHost = errors.New("resourceapi: action uri is not on the API server")
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   []byte
	Header http.Header
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.URL, e.Status)
}

// IsTimeout reports whether err was caused by a deadline, either the request
// context's or the HTTP client's own timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
