package service

import (
	"log"

	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/stream"
)

// fanEmitter feeds the owning request's emitter and the shared collector at
// once. A transport failure on the owner's side must not abort the
// computation, because attached requests still need the collector to fill;
// the owner's emitter is dropped and the pipeline keeps going.
type fanEmitter struct {
	owner     stream.Emitter
	collector *stream.Collector
	dropped   bool
}

func newFanEmitter(owner stream.Emitter, collector *stream.Collector) *fanEmitter {
	return &fanEmitter{owner: owner, collector: collector}
}

func (f *fanEmitter) Start(queryID string) error {
	f.forward(func(em stream.Emitter) error { return em.Start(queryID) })
	return f.collector.Start(queryID)
}

func (f *fanEmitter) FunctionCalls(calls []domain.FunctionCallInfo) error {
	f.forward(func(em stream.Emitter) error { return em.FunctionCalls(calls) })
	return f.collector.FunctionCalls(calls)
}

func (f *fanEmitter) FunctionResult(result *domain.FunctionResult) error {
	f.forward(func(em stream.Emitter) error { return em.FunctionResult(result) })
	return f.collector.FunctionResult(result)
}

func (f *fanEmitter) ContentDelta(delta string) error {
	f.forward(func(em stream.Emitter) error { return em.ContentDelta(delta) })
	return f.collector.ContentDelta(delta)
}

func (f *fanEmitter) Complete(resp *domain.QueryResponse) error {
	f.forward(func(em stream.Emitter) error { return em.Complete(resp) })
	return f.collector.Complete(resp)
}

func (f *fanEmitter) Fail(body *domain.ErrorBody) error {
	f.forward(func(em stream.Emitter) error { return em.Fail(body) })
	return f.collector.Fail(body)
}

func (f *fanEmitter) forward(send func(stream.Emitter) error) {
	if f.dropped {
		return
	}
	if err := send(f.owner); err != nil {
		log.Printf("WARN: dropping stream consumer: %v", err)
		f.dropped = true
	}
}
