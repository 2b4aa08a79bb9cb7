package llm

import (
	"context"
	"sync"
)

// MockClient is a configurable generation client for testing.
// Set Response/Error, or GenerateFunc for prompt-dependent answers.
// It is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	Response     string
	Error        error
	GenerateFunc func(prompt string) (string, error)

	generateCalls []string
}

func NewMockClient() *MockClient {
	return &MockClient{Response: "Mock response"}
}

func (c *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.generateCalls = append(c.generateCalls, prompt)
	fn, resp, err := c.GenerateFunc, c.Response, c.Error
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if fn != nil {
		return fn(prompt)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// GenerateCalls returns the prompts received so far.
func (c *MockClient) GenerateCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.generateCalls))
	copy(out, c.generateCalls)
	return out
}

// Reset clears recorded calls and restores the default response.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Response = "Mock response"
	c.Error = nil
	c.GenerateFunc = nil
	c.generateCalls = nil
}
