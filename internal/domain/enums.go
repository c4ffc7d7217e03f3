// Package domain defines the core domain models for the query orchestrator.
package domain

// QueryStatus represents the status of a query run.
type QueryStatus string

const (
	QueryStatusCreated   QueryStatus = "CREATED"
	QueryStatusRunning   QueryStatus = "RUNNING"
	QueryStatusDone      QueryStatus = "DONE"
	QueryStatusFailed    QueryStatus = "FAILED"
	QueryStatusCancelled QueryStatus = "CANCELLED"
)

// EventType represents the type of a persisted audit event.
type EventType string

const (
	EventTypeQueryReceived     EventType = "query_received"
	EventTypeCacheHit          EventType = "cache_hit"
	EventTypeFunctionsResolved EventType = "functions_resolved"
	EventTypePolicyDecision    EventType = "policy_decision"
	EventTypeFunctionResult    EventType = "function_result"
	EventTypeQueryCompleted    EventType = "query_completed"
	EventTypeQueryFailed       EventType = "query_failed"
)

// StreamEventType represents the type of a streaming event.
type StreamEventType string

const (
	StreamEventStart          StreamEventType = "start"
	StreamEventContentDelta   StreamEventType = "content_delta"
	StreamEventFunctionCalls  StreamEventType = "function_calls"
	StreamEventFunctionResult StreamEventType = "function_result"
	StreamEventComplete       StreamEventType = "complete"
	StreamEventError          StreamEventType = "error"
)

// ErrorCode identifies a failure class on the wire.
type ErrorCode string

const (
	ErrCodeAuthRequired            ErrorCode = "auth_required"
	ErrCodeRateLimited             ErrorCode = "rate_limited"
	ErrCodeUnresolvableQuery       ErrorCode = "unresolvable_query"
	ErrCodeFunctionExecutionFailed ErrorCode = "function_execution_failed"
	ErrCodePipelineTimeout         ErrorCode = "pipeline_timeout"
	ErrCodeStreamingTransport      ErrorCode = "streaming_transport_error"
	ErrCodeInternal                ErrorCode = "internal_error"
	ErrCodeTimeout                 ErrorCode = "timeout"
	ErrCodeBlocked                 ErrorCode = "blocked"
)
