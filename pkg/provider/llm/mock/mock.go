// Package mock provides a test double for the llm.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/herowayua/livevoice/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider. Responses are consumed
// in order; when the queue is exhausted the last response (or error) repeats.
type Provider struct {
	mu sync.Mutex

	// Responses is the queue of results returned by successive Complete
	// calls. Each entry is either a response or an error.
	Responses []Result

	// Calls records every request passed to Complete in order.
	Calls []llm.CompletionRequest
}

// Result is one scripted outcome of a Complete call.
type Result struct {
	Response *llm.CompletionResponse
	Err      error
}

var _ llm.Provider = (*Provider)(nil)

// Reply appends a successful response with the given content to the queue.
func (p *Provider) Reply(content string) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = append(p.Responses, Result{Response: &llm.CompletionResponse{Content: content}})
	return p
}

// Fail appends an error outcome to the queue.
func (p *Provider) Fail(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = append(p.Responses, Result{Err: err})
	return p
}

// Complete records the call and returns the next scripted result.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)

	if len(p.Responses) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	idx := len(p.Calls) - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	r := p.Responses[idx]
	return r.Response, r.Err
}

// CallCount returns how many times Complete was invoked. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Requests returns a copy of the recorded requests. Thread-safe.
func (p *Provider) Requests() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.CompletionRequest(nil), p.Calls...)
}
