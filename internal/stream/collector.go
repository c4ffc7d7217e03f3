package stream

import (
	"strings"
	"sync"

	"github.com/finsight/orchestrator/internal/domain"
)

// Collector buffers the event sequence in memory. The non-streaming path and
// attached duplicate requests run the same pipeline through a Collector and
// read the final response off it, so both delivery modes see identical
// content.
type Collector struct {
	mu      sync.Mutex
	queryID string
	started bool
	done    bool
	events  []domain.StreamEvent
	deltas  strings.Builder
	resp    *domain.QueryResponse
	errBody *domain.ErrorBody
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Start implements Emitter.
func (c *Collector) Start(queryID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started || c.done {
		return domain.ErrStreamClosed
	}
	c.started = true
	c.queryID = queryID
	c.append(domain.StreamEvent{Type: domain.StreamEventStart, QueryID: queryID})
	return nil
}

// FunctionCalls implements Emitter.
func (c *Collector) FunctionCalls(calls []domain.FunctionCallInfo) error {
	return c.intermediate(domain.StreamEvent{Type: domain.StreamEventFunctionCalls, Calls: calls})
}

// FunctionResult implements Emitter.
func (c *Collector) FunctionResult(result *domain.FunctionResult) error {
	return c.intermediate(domain.StreamEvent{Type: domain.StreamEventFunctionResult, Result: result})
}

// ContentDelta implements Emitter.
func (c *Collector) ContentDelta(delta string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.done {
		return domain.ErrStreamClosed
	}
	c.deltas.WriteString(delta)
	c.append(domain.StreamEvent{Type: domain.StreamEventContentDelta, Delta: delta})
	return nil
}

// Complete implements Emitter.
func (c *Collector) Complete(resp *domain.QueryResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.done {
		return domain.ErrStreamClosed
	}
	c.done = true
	c.resp = resp
	c.append(domain.StreamEvent{Type: domain.StreamEventComplete, Response: resp})
	return nil
}

// Fail implements Emitter.
func (c *Collector) Fail(body *domain.ErrorBody) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.done {
		return domain.ErrStreamClosed
	}
	c.done = true
	c.errBody = body
	c.append(domain.StreamEvent{Type: domain.StreamEventError, Error: body})
	return nil
}

func (c *Collector) intermediate(ev domain.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started || c.done {
		return domain.ErrStreamClosed
	}
	c.append(ev)
	return nil
}

// append records one event. Caller holds the lock.
func (c *Collector) append(ev domain.StreamEvent) {
	if ev.QueryID == "" {
		ev.QueryID = c.queryID
	}
	c.events = append(c.events, ev)
}

// Response returns the terminal response, or nil if the stream failed or has
// not finished.
func (c *Collector) Response() *domain.QueryResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resp
}

// ErrorBody returns the terminal error payload, if any.
func (c *Collector) ErrorBody() *domain.ErrorBody {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errBody
}

// Message returns the concatenation of every content delta seen so far.
func (c *Collector) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deltas.String()
}

// Events returns a copy of the recorded event sequence.
func (c *Collector) Events() []domain.StreamEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.StreamEvent(nil), c.events...)
}

// Replay plays the recorded sequence into another emitter, preserving order.
// Used when an attached duplicate request needs the owner's stream.
func (c *Collector) Replay(em Emitter) error {
	for _, ev := range c.Events() {
		var err error
		switch ev.Type {
		case domain.StreamEventStart:
			err = em.Start(ev.QueryID)
		case domain.StreamEventFunctionCalls:
			err = em.FunctionCalls(ev.Calls)
		case domain.StreamEventFunctionResult:
			err = em.FunctionResult(ev.Result)
		case domain.StreamEventContentDelta:
			err = em.ContentDelta(ev.Delta)
		case domain.StreamEventComplete:
			err = em.Complete(ev.Response)
		case domain.StreamEventError:
			err = em.Fail(ev.Error)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
