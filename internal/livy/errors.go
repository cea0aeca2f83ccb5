package livy

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedMethod  = errors.New("livy: unsupported http method")
	ErrSigning            = errors.New("livy: request signing failed")
	ErrRetriesExhausted   = errors.New("livy: retries exhausted")
	ErrMissingLocation    = errors.New("livy: location header missing")
	ErrWaitTimeout        = errors.New("livy: wait window exceeded")
	ErrNoSession          = errors.New("livy: no active session")
	ErrNoStatement        = errors.New("livy: no statement handle")
	ErrDispatcherRequired = errors.New("livy: dispatcher required")
	ErrEndpointRequired   = errors.New("livy: endpoint required")
)

// StatusError reports a non-2xx response that terminates an operation.
type StatusError struct {
	Method     Method
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("livy: %s %s returned status %d: %s",
		e.Method, e.URL, e.StatusCode, truncateBody(e.Body))
}

func truncateBody(body []byte) string {
	const limit = 256
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
