// Package engine executes resolved function invocations against the record
// store and collects their results.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/finsight/orchestrator/internal/domain"
)

// Invoker runs one catalog function. *functions.Catalog satisfies this.
type Invoker interface {
	Execute(ctx context.Context, userID, name string, args map[string]any) (json.RawMessage, error)
}

// Gate decides whether an invocation may run. *policy.Engine satisfies this.
type Gate interface {
	Evaluate(ctx context.Context, input any) (string, error)
}

// Engine fans invocations out, fans results back in, and never lets one
// failure abort the batch.
type Engine struct {
	invoker Invoker
	gate    Gate // nil means allow everything
	timeout time.Duration
}

// New creates an execution engine with the given batch wall-clock budget.
func New(invoker Invoker, gate Gate, timeout time.Duration) *Engine {
	return &Engine{invoker: invoker, gate: gate, timeout: timeout}
}

// Execute runs all invocations and returns results in invocation order.
// The catalog functions declare no data dependencies on each other, so every
// invocation runs concurrently. Invocations still outstanding when the batch
// budget expires are recorded as failed with a timeout reason, never left
// unresolved. observe, when non-nil, is called once per completed result,
// serialized, in completion order.
func (e *Engine) Execute(ctx context.Context, userID string, invs []domain.FunctionInvocation, observe func(domain.FunctionResult)) []domain.FunctionResult {
	results := make([]domain.FunctionResult, len(invs))
	if len(invs) == 0 {
		return results
	}

	execCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var wg sync.WaitGroup
	var mu sync.Mutex
	for i, inv := range invs {
		wg.Add(1)
		go func(i int, inv domain.FunctionInvocation) {
			defer wg.Done()
			res := e.run(execCtx, userID, inv)
			mu.Lock()
			results[i] = res
			if observe != nil {
				observe(res)
			}
			mu.Unlock()
		}(i, inv)
	}
	wg.Wait()

	return results
}

func (e *Engine) run(ctx context.Context, userID string, inv domain.FunctionInvocation) domain.FunctionResult {
	res := domain.FunctionResult{Name: inv.Name, Index: inv.Index}

	if e.gate != nil {
		decision, err := e.gate.Evaluate(ctx, map[string]any{
			"function": inv.Name,
			"args":     inv.Args,
			"user_id":  userID,
		})
		if err != nil {
			res.Error = &domain.FunctionError{Code: domain.ErrCodeInternal, Message: "policy evaluation failed"}
			return res
		}
		if decision == "block" {
			res.Error = &domain.FunctionError{Code: domain.ErrCodeBlocked, Message: "blocked by access policy"}
			return res
		}
	}

	data, err := e.invoker.Execute(ctx, userID, inv.Name, inv.Args)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			res.Error = &domain.FunctionError{Code: domain.ErrCodeTimeout, Message: "execution budget exceeded"}
		case errors.Is(err, context.Canceled):
			res.Error = &domain.FunctionError{Code: domain.ErrCodeTimeout, Message: "execution cancelled"}
		default:
			res.Error = &domain.FunctionError{Code: domain.ErrCodeFunctionExecutionFailed, Message: err.Error()}
		}
		return res
	}

	res.OK = true
	res.Data = data
	return res
}

// HasTimeout reports whether any result failed on the batch budget. Such a
// batch must never be cached as if it completed.
func HasTimeout(results []domain.FunctionResult) bool {
	for _, r := range results {
		if r.Error != nil && r.Error.Code == domain.ErrCodeTimeout {
			return true
		}
	}
	return false
}
