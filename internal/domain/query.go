package domain

import "encoding/json"

// ConversationTurn is one prior exchange replayed into the resolver context.
type ConversationTurn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// QueryRequest is the immutable input for one orchestration run.
type QueryRequest struct {
	UserID    string
	Query     string
	Streaming bool
	Context   []ConversationTurn
	// Filters narrow the query scope and participate in the cache fingerprint.
	Filters map[string]string
}

// QueryResponse is the unit returned to the caller and stored in the cache.
// Field names are part of the wire contract.
type QueryResponse struct {
	Message  string                     `json:"message"`
	Data     map[string]json.RawMessage `json:"data"`
	Insights []string                   `json:"insights"`
	Cached   bool                       `json:"cached"`
	// ExecutionTime is the measured end-to-end duration in milliseconds.
	ExecutionTime int64      `json:"executionTime"`
	Error         *ErrorBody `json:"error,omitempty"`
}

// Clone returns a shallow-safe copy so cached responses are never mutated
// in place when per-request flags differ.
func (r *QueryResponse) Clone() *QueryResponse {
	cp := *r
	if r.Data != nil {
		cp.Data = make(map[string]json.RawMessage, len(r.Data))
		for k, v := range r.Data {
			cp.Data[k] = v
		}
	}
	if r.Insights != nil {
		cp.Insights = append([]string(nil), r.Insights...)
	}
	return &cp
}
