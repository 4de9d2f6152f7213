package llm

import (
	"context"
	"sync"
)

// scriptedClient returns responses and errors in order.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []ChatRequest
}

func (c *scriptedClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.requests)
	c.requests = append(c.requests, req)
	if i < len(c.errs) && c.errs[i] != nil {
		return "", c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	if len(c.responses) > 0 {
		return c.responses[len(c.responses)-1], nil
	}
	return "", nil
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *scriptedClient) GetModel(tier ModelTier) string { return "scripted-" + string(tier) }
func (c *scriptedClient) Provider() Provider             { return "scripted" }
func (c *scriptedClient) Close() error                   { return nil }
