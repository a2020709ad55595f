package summary

import (
	"errors"
	"fmt"
)

// ErrEmptyText is returned when the text to summarize is empty or
// whitespace-only. It is raised before any network I/O happens.
var ErrEmptyText = errors.New("text is empty")

// HTTPError is a non-2xx response from the summarization service,
// including a 429 that survived the retry budget.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("summarize service returned HTTP %d: %s", e.Status, e.Body)
}

// NetworkError is a transport-level failure (DNS, connect, reset).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("summarize service unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ParseError is a 2xx response whose body is not the expected JSON shape.
// Raw keeps the original body so it is never silently swallowed.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed summarize response: %v (body: %q)", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
