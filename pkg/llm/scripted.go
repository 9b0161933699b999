package llm

import (
	"context"
	"fmt"
	"sync"
)

// ScriptedClient replays canned responses in order. Tests drive the
// planner, judge and chat paths with it.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []Request
}

// NewScriptedClient queues responses; a nil error slot means success.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{
		responses: responses,
		errs:      make([]error, len(responses)),
	}
}

// QueueError inserts a failing call at the current end of the script.
func (c *ScriptedClient) QueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, "")
	c.errs = append(c.errs, err)
}

// Queue appends a successful response to the script.
func (c *ScriptedClient) Queue(response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses = append(c.responses, response)
	c.errs = append(c.errs, nil)
}

// Calls returns every request seen so far.
func (c *ScriptedClient) Calls() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *ScriptedClient) next(req Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, req)
	idx := len(c.calls) - 1
	if idx >= len(c.responses) {
		return "", fmt.Errorf("scripted client exhausted after %d calls", len(c.responses))
	}
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	return c.responses[idx], nil
}

func (c *ScriptedClient) Complete(ctx context.Context, req Request) (string, error) {
	return c.next(req)
}

func (c *ScriptedClient) Stream(ctx context.Context, req Request) (<-chan Chunk, error) {
	text, err := c.next(req)
	out := make(chan Chunk, 4)
	go func() {
		defer close(out)
		if err != nil {
			out <- &ErrorChunk{Message: err.Error()}
			return
		}
		// Split into two chunks so consumers see real deltas.
		if len(text) > 1 {
			mid := len(text) / 2
			out <- &TextChunk{Content: text[:mid]}
			out <- &TextChunk{Content: text[mid:]}
		} else {
			out <- &TextChunk{Content: text}
		}
	}()
	return out, nil
}

func (c *ScriptedClient) Close() error { return nil }
