// Package resolver maps a natural-language query to an ordered list of data
// access function invocations.
package resolver

import (
	"context"
	"log"
	"os"
	"sort"

	"github.com/finsight/orchestrator/internal/adapter/llm"
	"github.com/finsight/orchestrator/internal/config"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/functions"
)

const (
	// EnvMode is the environment variable name for mode selection.
	EnvMode = "FINSIGHT_MODE"
	// ModeMock indicates the keyword resolver should be used.
	ModeMock = "MOCK"
)

// Resolver turns a query request into invocations. Implementations must be
// pure mappings: no side effects, and an empty invocation list (not an
// error) when the query has nothing actionable in it.
type Resolver interface {
	Resolve(ctx context.Context, req *domain.QueryRequest) ([]domain.FunctionInvocation, error)
}

// New creates a resolver based on the FINSIGHT_MODE environment variable.
// FINSIGHT_MODE=MOCK selects the deterministic keyword resolver; otherwise
// the LLM-backed resolver is used.
func New(cfg *config.Config, catalog *functions.Catalog) Resolver {
	if os.Getenv(EnvMode) == ModeMock {
		log.Println("FINSIGHT_MODE=MOCK detected, using keyword resolver")
		return NewKeywordResolver(catalog)
	}
	client := llm.NewClient(cfg.LLMURL, cfg.LLMAPIKey, cfg.LLMTimeout)
	return NewLLMResolver(client, catalog, cfg.LLMModel)
}

// Normalize sorts invocations by (name, canonical args) and reassigns order
// indexes, so equivalent resolutions always execute and synthesize
// identically regardless of how the backing model ordered its calls.
func Normalize(invs []domain.FunctionInvocation) []domain.FunctionInvocation {
	out := append([]domain.FunctionInvocation(nil), invs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].CanonicalArgs() < out[j].CanonicalArgs()
	})
	for i := range out {
		out[i].Index = i
	}
	return out
}
