// Package stream delivers pipeline progress to callers. The Encoder writes
// newline-delimited JSON to a transport; the Collector buffers the same event
// sequence in memory for non-streaming responses and cache replay.
package stream

import (
	"github.com/finsight/orchestrator/internal/domain"
)

// Emitter receives pipeline progress in order. Implementations enforce the
// event grammar: one Start, any number of intermediate events, then exactly
// one Complete or Fail. Calls after the terminal event return
// domain.ErrStreamClosed.
type Emitter interface {
	Start(queryID string) error
	FunctionCalls(calls []domain.FunctionCallInfo) error
	FunctionResult(result *domain.FunctionResult) error
	ContentDelta(delta string) error
	Complete(resp *domain.QueryResponse) error
	Fail(body *domain.ErrorBody) error
}

// deltaChunkSize bounds how much message text rides in one content_delta.
const deltaChunkSize = 48

// SplitDeltas chunks a synthesized message into content_delta payloads.
// Concatenating the chunks always reproduces the message exactly.
func SplitDeltas(message string) []string {
	if message == "" {
		return nil
	}
	runes := []rune(message)
	var chunks []string
	for len(runes) > 0 {
		n := deltaChunkSize
		if n > len(runes) {
			n = len(runes)
		}
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}
