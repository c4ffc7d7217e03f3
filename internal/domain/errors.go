package domain

import "errors"

// Sentinel errors for the pipeline failure taxonomy. Handlers map these to
// HTTP status codes; everything unrecognized is an internal error.
var (
	ErrAuthRequired      = errors.New("authentication required")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrUnresolvableQuery = errors.New("no catalog function answers this query")
	ErrPipelineTimeout   = errors.New("pipeline wall-clock budget exceeded")
	ErrStreamClosed      = errors.New("stream already terminated")
	ErrStreamTransport   = errors.New("streaming consumer disconnected")
)

// ErrorBody is the structured error payload carried by non-2xx responses
// and by terminal error stream events.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// CodeForError maps a pipeline error to its wire-level error code.
func CodeForError(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrAuthRequired):
		return ErrCodeAuthRequired
	case errors.Is(err, ErrRateLimited):
		return ErrCodeRateLimited
	case errors.Is(err, ErrUnresolvableQuery):
		return ErrCodeUnresolvableQuery
	case errors.Is(err, ErrPipelineTimeout):
		return ErrCodePipelineTimeout
	case errors.Is(err, ErrStreamTransport):
		return ErrCodeStreamingTransport
	default:
		return ErrCodeInternal
	}
}
