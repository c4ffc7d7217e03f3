package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/finsight/orchestrator/internal/adapter/llm"
	"github.com/finsight/orchestrator/internal/domain"
	"github.com/finsight/orchestrator/internal/functions"
)

const systemPrompt = `You answer questions about a user's personal financial records.
You can only retrieve data through the provided functions. Select every function
needed to answer the question and fill in the arguments. If the question is a
greeting or is not about the user's finances, respond with plain text instead of
calling a function.`

// LLMResolver resolves queries through a chat completion model with the
// catalog exposed as tool definitions. Non-determinism in the model output
// is dampened by Normalize before the invocation list leaves this package.
type LLMResolver struct {
	client  llm.CompletionClient
	catalog *functions.Catalog
	model   string
}

// NewLLMResolver creates a model-backed resolver.
func NewLLMResolver(client llm.CompletionClient, catalog *functions.Catalog, model string) *LLMResolver {
	return &LLMResolver{client: client, catalog: catalog, model: model}
}

var _ Resolver = (*LLMResolver)(nil)

// Resolve implements Resolver.
func (r *LLMResolver) Resolve(ctx context.Context, req *domain.QueryRequest) ([]domain.FunctionInvocation, error) {
	messages := make([]llm.ChatMessage, 0, len(req.Context)+2)
	messages = append(messages, llm.ChatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range req.Context {
		messages = append(messages, llm.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.ChatMessage{Role: "user", Content: req.Query})

	var tools []llm.Tool
	for _, def := range r.catalog.Definitions() {
		tools = append(tools, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	zero := 0.0
	resp, err := r.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		Temperature: &zero,
		Tools:       tools,
	})
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, fmt.Errorf("completion returned no choices")
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		// Greeting or out-of-domain question; the pipeline falls through to
		// the canned synthesis step.
		return nil, nil
	}

	var invs []domain.FunctionInvocation
	for _, call := range calls {
		name := call.Function.Name
		if !r.catalog.Has(name) {
			log.Printf("WARN: resolver selected unknown function %q, skipping", name)
			continue
		}
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				log.Printf("WARN: resolver produced malformed args for %s: %v", name, err)
				continue
			}
		}
		normalized, err := r.catalog.Normalize(name, args)
		if err != nil {
			log.Printf("WARN: resolver args rejected for %s: %v", name, err)
			continue
		}
		invs = append(invs, domain.FunctionInvocation{Name: name, Args: normalized})
	}

	if len(invs) == 0 {
		// The model attempted calls but none survived validation.
		return nil, domain.ErrUnresolvableQuery
	}
	return Normalize(invs), nil
}
