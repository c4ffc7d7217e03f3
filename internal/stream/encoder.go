package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

// Encoder writes the event sequence as newline-delimited JSON. Writes are
// synchronous so a slow reader applies backpressure to the producer instead
// of growing an unbounded buffer. A write failure poisons the stream; every
// later call reports domain.ErrStreamClosed.
type Encoder struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	queryID string
	started bool
	done    bool
	broken  bool
}

// NewEncoder wraps w. If w also implements http.Flusher each event is flushed
// to the client as soon as it is written.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// Start implements Emitter.
func (e *Encoder) Start(queryID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started || e.done || e.broken {
		return domain.ErrStreamClosed
	}
	e.started = true
	e.queryID = queryID
	return e.write(domain.StreamEvent{Type: domain.StreamEventStart, QueryID: queryID})
}

// FunctionCalls implements Emitter.
func (e *Encoder) FunctionCalls(calls []domain.FunctionCallInfo) error {
	return e.intermediate(domain.StreamEvent{Type: domain.StreamEventFunctionCalls, Calls: calls})
}

// FunctionResult implements Emitter.
func (e *Encoder) FunctionResult(result *domain.FunctionResult) error {
	return e.intermediate(domain.StreamEvent{Type: domain.StreamEventFunctionResult, Result: result})
}

// ContentDelta implements Emitter.
func (e *Encoder) ContentDelta(delta string) error {
	return e.intermediate(domain.StreamEvent{Type: domain.StreamEventContentDelta, Delta: delta})
}

// Complete implements Emitter.
func (e *Encoder) Complete(resp *domain.QueryResponse) error {
	return e.terminal(domain.StreamEvent{Type: domain.StreamEventComplete, Response: resp})
}

// Fail implements Emitter.
func (e *Encoder) Fail(body *domain.ErrorBody) error {
	return e.terminal(domain.StreamEvent{Type: domain.StreamEventError, Error: body})
}

func (e *Encoder) intermediate(ev domain.StreamEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.done || e.broken {
		return domain.ErrStreamClosed
	}
	return e.write(ev)
}

func (e *Encoder) terminal(ev domain.StreamEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.done || e.broken {
		return domain.ErrStreamClosed
	}
	e.done = true
	return e.write(ev)
}

// write stamps and serializes one event. Caller holds the lock.
func (e *Encoder) write(ev domain.StreamEvent) error {
	ev.Ts = time.Now().UnixMilli()
	if ev.QueryID == "" {
		ev.QueryID = e.queryID
	}

	line, err := json.Marshal(ev)
	if err != nil {
		e.broken = true
		return fmt.Errorf("%w: %v", domain.ErrStreamTransport, err)
	}
	line = append(line, '\n')

	if _, err := e.w.Write(line); err != nil {
		e.broken = true
		return fmt.Errorf("%w: %v", domain.ErrStreamTransport, err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
