package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/finsight/orchestrator/internal/cache"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/engine"
	"github.com/finsight/orchestrator/internal/stream"
	"github.com/finsight/orchestrator/internal/synthesizer"
)

// flightOutcome is what one deduplicated computation leaves behind for
// requests that attached to it.
type flightOutcome struct {
	collector *stream.Collector
	resp      *domain.QueryResponse
	err       error
}

// HandleQuery runs one query end to end and delivers progress through em.
// Identical concurrent queries share a single computation: the first request
// owns the pipeline, the rest attach and replay its event sequence. The
// returned response is what the terminal complete event carried.
func (s *Service) HandleQuery(ctx context.Context, req *domain.QueryRequest, em stream.Emitter) (*domain.QueryResponse, error) {
	started := time.Now()
	queryID := "qry_" + uuid.New().String()[:8]

	run := &domain.QueryRun{
		QueryID:   queryID,
		UserID:    req.UserID,
		QueryText: req.Query,
		Status:    domain.QueryStatusCreated,
		CreatedAt: started,
	}
	if err := s.store.CreateQueryRun(ctx, run); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, queryID, domain.EventTypeQueryReceived, map[string]any{
		"query":     req.Query,
		"streaming": req.Streaming,
	})

	key := cache.Fingerprint(req.UserID, req.Query, req.Filters)

	if cached, err := s.cache.Lookup(ctx, key); err != nil {
		log.Printf("WARN: cache lookup failed: %v", err)
	} else if cached != nil {
		return s.deliverCached(ctx, queryID, req, em, cached, started)
	}

	executed := false
	v, _, _ := s.group.Do(key, func() (any, error) {
		executed = true
		collector := stream.NewCollector()
		fan := newFanEmitter(em, collector)
		resp, err := s.compute(ctx, queryID, key, req, fan)
		return &flightOutcome{collector: collector, resp: resp, err: err}, nil
	})
	out := v.(*flightOutcome)

	if executed {
		return out.resp, out.err
	}
	return s.deliverAttached(ctx, queryID, req, em, out, started)
}

// compute runs the pipeline once. It is always executed by the owning
// request's goroutine under the owning request's context.
func (s *Service) compute(ctx context.Context, queryID, key string, req *domain.QueryRequest, fan *fanEmitter) (*domain.QueryResponse, error) {
	started := time.Now()
	pipeCtx, cancel := context.WithTimeout(ctx, s.config.PipelineTimeout)
	defer cancel()

	if err := fan.Start(queryID); err != nil {
		return nil, err
	}

	resolveReq := *req
	if len(resolveReq.Context) == 0 {
		turns, err := s.store.GetTurns(pipeCtx, req.UserID, historyLimit)
		if err != nil {
			log.Printf("WARN: failed to load conversation history: %v", err)
		} else {
			resolveReq.Context = turns
		}
	}

	invs, err := s.resolver.Resolve(pipeCtx, &resolveReq)
	if err != nil {
		if errors.Is(err, domain.ErrUnresolvableQuery) {
			// Not a failure: finish the run with the clarifying message,
			// exactly as if the resolver had found nothing actionable.
			invs = nil
		} else {
			if pipeCtx.Err() == context.DeadlineExceeded {
				err = domain.ErrPipelineTimeout
			}
			return s.fail(ctx, queryID, fan, started, err)
		}
	}

	var results []domain.FunctionResult
	if len(invs) > 0 {
		calls := make([]domain.FunctionCallInfo, len(invs))
		names := make([]string, len(invs))
		for i, inv := range invs {
			calls[i] = domain.FunctionCallInfo{Name: inv.Name, Args: inv.CanonicalArgs()}
			names[i] = inv.Name
		}
		if err := fan.FunctionCalls(calls); err != nil {
			log.Printf("WARN: failed to emit function calls: %v", err)
		}
		s.recordEvent(ctx, queryID, domain.EventTypeFunctionsResolved, map[string]any{"functions": names})

		results = s.engine.Execute(pipeCtx, req.UserID, invs, func(res domain.FunctionResult) {
			if err := fan.FunctionResult(&res); err != nil {
				log.Printf("WARN: failed to emit function result: %v", err)
			}
			s.recordEvent(ctx, queryID, domain.EventTypeFunctionResult, res)
		})
	}

	if pipeCtx.Err() != nil {
		err := domain.ErrPipelineTimeout
		if ctx.Err() == context.Canceled {
			err = context.Canceled
		}
		return s.fail(ctx, queryID, fan, started, err)
	}

	message, data, insights := synthesizer.Synthesize(results)
	for _, delta := range stream.SplitDeltas(message) {
		if err := fan.ContentDelta(delta); err != nil {
			log.Printf("WARN: failed to emit content delta: %v", err)
			break
		}
	}

	execMs := time.Since(started).Milliseconds()
	resp := &domain.QueryResponse{
		Message:       message,
		Data:          data,
		Insights:      insights,
		Cached:        false,
		ExecutionTime: execMs,
	}
	if err := fan.Complete(resp); err != nil {
		log.Printf("WARN: failed to emit complete event: %v", err)
	}

	// Never cache a run that was cut short; a later identical query must
	// recompute instead of replaying truncated results.
	if ctx.Err() == nil && !engine.HasTimeout(results) {
		if err := s.cache.Put(ctx, key, req.UserID, resp); err != nil {
			log.Printf("WARN: failed to store response in cache: %v", err)
		}
	}

	if err := s.store.UpdateQueryRunCompleted(ctx, queryID, domain.QueryStatusDone, false, execMs, nil); err != nil {
		log.Printf("ERROR: failed to update query run: %v", err)
	}
	s.recordEvent(ctx, queryID, domain.EventTypeQueryCompleted, map[string]any{
		"duration_ms": execMs,
		"functions":   len(invs),
	})
	s.persistTurns(ctx, req.UserID, req.Query, message)
	s.monitor.Record("query", time.Since(started), false, false)

	return resp, nil
}

// deliverCached replays a stored response as a full event sequence.
func (s *Service) deliverCached(ctx context.Context, queryID string, req *domain.QueryRequest, em stream.Emitter, cached *domain.QueryResponse, started time.Time) (*domain.QueryResponse, error) {
	resp := cached.Clone()
	resp.Cached = true
	resp.ExecutionTime = time.Since(started).Milliseconds()

	if err := em.Start(queryID); err != nil {
		return nil, err
	}
	for _, delta := range stream.SplitDeltas(resp.Message) {
		if err := em.ContentDelta(delta); err != nil {
			return nil, err
		}
	}
	if err := em.Complete(resp); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, queryID, domain.EventTypeCacheHit, map[string]any{"attached": false})
	if err := s.store.UpdateQueryRunCompleted(ctx, queryID, domain.QueryStatusDone, true, resp.ExecutionTime, nil); err != nil {
		log.Printf("ERROR: failed to update query run: %v", err)
	}
	s.persistTurns(ctx, req.UserID, req.Query, resp.Message)
	s.monitor.Record("query", time.Since(started), false, true)

	return resp, nil
}

// deliverAttached replays the owner's event sequence for a request that
// attached to an in-flight computation.
func (s *Service) deliverAttached(ctx context.Context, queryID string, req *domain.QueryRequest, em stream.Emitter, out *flightOutcome, started time.Time) (*domain.QueryResponse, error) {
	if out.err != nil {
		body := &domain.ErrorBody{Code: domain.CodeForError(out.err), Message: out.err.Error()}
		if err := em.Start(queryID); err == nil {
			if err := em.Fail(body); err != nil {
				log.Printf("WARN: failed to emit error event: %v", err)
			}
		}
		s.finishFailed(queryID, body, out.err, started)
		return nil, out.err
	}

	resp := out.resp.Clone()
	resp.Cached = true
	resp.ExecutionTime = time.Since(started).Milliseconds()

	for _, ev := range out.collector.Events() {
		var err error
		switch ev.Type {
		case domain.StreamEventStart:
			err = em.Start(queryID)
		case domain.StreamEventFunctionCalls:
			err = em.FunctionCalls(ev.Calls)
		case domain.StreamEventFunctionResult:
			err = em.FunctionResult(ev.Result)
		case domain.StreamEventContentDelta:
			err = em.ContentDelta(ev.Delta)
		case domain.StreamEventComplete:
			err = em.Complete(resp)
		case domain.StreamEventError:
			err = em.Fail(ev.Error)
		}
		if err != nil {
			return nil, err
		}
	}

	s.recordEvent(ctx, queryID, domain.EventTypeCacheHit, map[string]any{"attached": true})
	if err := s.store.UpdateQueryRunCompleted(ctx, queryID, domain.QueryStatusDone, true, resp.ExecutionTime, nil); err != nil {
		log.Printf("ERROR: failed to update query run: %v", err)
	}
	s.persistTurns(ctx, req.UserID, req.Query, resp.Message)
	s.monitor.Record("query", time.Since(started), false, true)

	return resp, nil
}

// fail closes the stream with a terminal error and books the failed run.
func (s *Service) fail(ctx context.Context, queryID string, fan *fanEmitter, started time.Time, err error) (*domain.QueryResponse, error) {
	body := &domain.ErrorBody{Code: domain.CodeForError(err), Message: err.Error()}
	if emitErr := fan.Fail(body); emitErr != nil {
		log.Printf("WARN: failed to emit error event: %v", emitErr)
	}
	s.finishFailed(queryID, body, err, started)
	return nil, err
}

func (s *Service) finishFailed(queryID string, body *domain.ErrorBody, cause error, started time.Time) {
	// The caller's context may already be cancelled; bookkeeping still has
	// to land.
	bookCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := domain.QueryStatusFailed
	if errors.Is(cause, context.Canceled) {
		status = domain.QueryStatusCancelled
	}
	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		payload = nil
	}
	execMs := time.Since(started).Milliseconds()
	if err := s.store.UpdateQueryRunCompleted(bookCtx, queryID, status, false, execMs, payload); err != nil {
		log.Printf("ERROR: failed to update query run: %v", err)
	}
	s.recordEvent(bookCtx, queryID, domain.EventTypeQueryFailed, body)
	s.monitor.Record("query", time.Since(started), true, false)
}

// persistTurns appends the exchange to conversation history.
// Failures are logged, never fatal.
func (s *Service) persistTurns(ctx context.Context, userID, query, answer string) {
	if err := s.store.CreateTurn(ctx, userID, "user", query); err != nil {
		log.Printf("ERROR: failed to save user turn: %v", err)
		return
	}
	if err := s.store.CreateTurn(ctx, userID, "assistant", answer); err != nil {
		log.Printf("ERROR: failed to save assistant turn: %v", err)
	}
}
