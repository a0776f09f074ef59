package orchestrator

import "fmt"

type ErrorCode string

const (
	ErrorUpstream         ErrorCode = "UPSTREAM_ERROR"
	ErrorTimeout          ErrorCode = "POLL_TIMEOUT"
	ErrorCanceled         ErrorCode = "CANCELED"
	ErrorMalformedPayload ErrorCode = "MALFORMED_ACTION_PAYLOAD"
	ErrorStore            ErrorCode = "STORE_ERROR"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("orchestrator: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("orchestrator: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the orchestrator error code, or ErrorInternal for foreign
// errors.
func CodeOf(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ErrorInternal
}
