package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scriptable CompletionClient for tests. Queued responses
// are returned in order; when the queue is empty it falls back to a plain
// text completion echoing the last user message.
type MockClient struct {
	mu       sync.Mutex
	queue    []*ChatCompletionResponse
	Requests []*ChatCompletionRequest
}

// NewMockClient creates an empty mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ CompletionClient = (*MockClient)(nil)

// Queue appends a canned response.
func (m *MockClient) Queue(resp *ChatCompletionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, resp)
}

// QueueToolCalls appends a canned response carrying the given tool calls.
func (m *MockClient) QueueToolCalls(calls ...ToolCall) {
	m.Queue(&ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "mock",
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:      "assistant",
					ToolCalls: calls,
				},
				FinishReason: "tool_calls",
			},
		},
	})
}

// CreateChatCompletion returns the next queued response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)

	if len(m.queue) > 0 {
		resp := m.queue[0]
		m.queue = m.queue[1:]
		return resp, nil
	}

	var lastUser string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			lastUser = req.Messages[i].Content
			break
		}
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   "mock",
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    "assistant",
					Content: fmt.Sprintf("[MOCK] Received: %q", lastUser),
				},
				FinishReason: "stop",
			},
		},
	}, nil
}
