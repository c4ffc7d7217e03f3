package llm

import "context"

// CompletionClient defines the interface for chat completion calls.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Ensure Client implements CompletionClient.
var _ CompletionClient = (*Client)(nil)
