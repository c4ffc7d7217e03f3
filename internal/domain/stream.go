package domain

// FunctionCallInfo announces one resolved invocation on the stream without
// exposing execution internals.
type FunctionCallInfo struct {
	Name string `json:"name"`
	Args string `json:"args"`
}

// StreamEvent is one newline-terminated JSON object on the streaming channel.
// Exactly one start event opens the stream and exactly one terminal event
// (complete or error) closes it.
type StreamEvent struct {
	Type    StreamEventType    `json:"type"`
	Ts      int64              `json:"ts"`
	QueryID string             `json:"query_id,omitempty"`
	Delta   string             `json:"delta,omitempty"`
	Calls   []FunctionCallInfo `json:"calls,omitempty"`
	Result  *FunctionResult    `json:"result,omitempty"`
	// Response is set on the complete event only.
	Response *QueryResponse `json:"response,omitempty"`
	Error    *ErrorBody     `json:"error,omitempty"`
}
