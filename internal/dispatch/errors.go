// ABOUTME: Error types returned by the dispatcher client
// ABOUTME: BackendError wraps every connection, query, or result failure

package dispatch

import "errors"

// ErrNoResult is returned when the dispatch query produces no row.
var ErrNoResult = errors.New("no result")

// ErrMalformedResult is returned when the backend returns a value that is not JSON.
var ErrMalformedResult = errors.New("malformed result: envelope is not valid JSON")

// BackendError reports a failed dispatch. Op names the stage that failed
// ("connect", "encode context", "dispatch"); the message is the cause's text
// so it can be surfaced to callers unchanged.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
