// Package policy evaluates which resolved invocations a user may execute.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.function_policy.decision"),
		rego.Module("function_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the function access policy.
// Input is a map with keys: function, args, user_id.
// Returns the decision (allow or block).
func (e *Engine) Evaluate(ctx context.Context, input any) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default; an empty result means it did not load.
		return "allow", nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "allow", nil
}

// DefaultPolicy is the default function access policy: everything in the
// catalog is readable, but expensive scans are capped.
const DefaultPolicy = `
package function_policy

default decision = "allow"

# Oversized merchant rankings are a table scan in disguise
decision = "block" {
	input.function == "top_merchants"
	input.args.limit > 100
}

# Year-wide anomaly scans are only for the demo tenant
decision = "block" {
	input.function == "anomaly_scan"
	input.args.period == "this_year"
	input.user_id != "demo"
}
`
