// Package service is the only component that talks to the network. It wraps
// the LLM endpoint and the web-search endpoint behind one retrying,
// rate-limited Invoke contract.
package service

import (
	"context"
	"errors"
	"fmt"

	backoff "github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/arbiterhq/arbiter/internal/model"
)

// Request is one call to an external capability. LLM calls fill the prompt
// fields; search calls fill the query fields.
type Request struct {
	Capability Capability

	// LLM payload
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32

	// Search payload
	Query      string
	NumResults int
}

// SearchResult is one organic result from the search endpoint.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"link"`
	Snippet string `json:"snippet"`
}

// Response carries either an LLM completion or search results.
type Response struct {
	Text       string
	Results    []SearchResult
	TokensUsed int
}

// Invoker is the contract consumers depend on. Tests inject fakes.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (*Response, error)
}

// LLMBackend is the raw LLM transport.
type LLMBackend interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// SearchBackend is the raw search transport.
type SearchBackend interface {
	Search(ctx context.Context, req Request) (*Response, error)
}

// Client applies the retry policy, per-capability concurrency ceilings, and
// per-capability rate smoothing in front of the backends. Callers over a
// ceiling block until a slot frees, never drop.
type Client struct {
	llm    LLMBackend
	search SearchBackend
	policy Policy
	cfg    model.ServiceConfig

	sems   map[Capability]*semaphore.Weighted
	limits map[Capability]*rate.Limiter
}

// NewClient builds the service client from configuration and transports.
func NewClient(cfg model.ServiceConfig, llm LLMBackend, search SearchBackend) *Client {
	llmSlots := int64(cfg.LLMConcurrency)
	if llmSlots <= 0 {
		llmSlots = 1
	}
	searchSlots := int64(cfg.SearchConcurrency)
	if searchSlots <= 0 {
		searchSlots = 1
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	llmRate := rate.Limit(cfg.LLMRate)
	if llmRate <= 0 {
		llmRate = rate.Inf
	}
	searchRate := rate.Limit(cfg.SearchRate)
	if searchRate <= 0 {
		searchRate = rate.Inf
	}

	return &Client{
		llm:    llm,
		search: search,
		policy: PolicyFor(cfg.MaxRetries),
		cfg:    cfg,
		sems: map[Capability]*semaphore.Weighted{
			CapabilityLLM:    semaphore.NewWeighted(llmSlots),
			CapabilitySearch: semaphore.NewWeighted(searchSlots),
		},
		limits: map[Capability]*rate.Limiter{
			CapabilityLLM:    rate.NewLimiter(llmRate, burst),
			CapabilitySearch: rate.NewLimiter(searchRate, burst),
		},
	}
}

// Invoke executes one request with retries. Transient failures (timeouts,
// 429/5xx) are retried with exponential backoff and jitter until the budget
// runs out, then surface as ServiceUnavailableError. Non-retryable failures
// surface immediately as RequestRejectedError.
func (c *Client) Invoke(ctx context.Context, req Request) (*Response, error) {
	sem, ok := c.sems[req.Capability]
	if !ok {
		return nil, &RequestRejectedError{Capability: req.Capability, Err: fmt.Errorf("unknown capability %q", req.Capability)}
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%s slot: %w", req.Capability, err)
	}
	defer sem.Release(1)

	attempts := 0
	op := func() (*Response, error) {
		attempts++

		if err := c.limits[req.Capability].Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.cfg.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}

		resp, err := c.dispatch(callCtx, req)
		if err != nil {
			if !Retryable(err) {
				return nil, backoff.Permanent(&RequestRejectedError{Capability: req.Capability, Err: err})
			}
			return nil, err
		}
		return resp, nil
	}

	resp, err := backoff.RetryWithData(op, c.policy.Backoff(ctx))
	if err != nil {
		var rejected *RequestRejectedError
		if errors.As(err, &rejected) {
			return nil, rejected
		}
		if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s call canceled: %w", req.Capability, ctx.Err())
		}
		return nil, &ServiceUnavailableError{Capability: req.Capability, Attempts: attempts, Err: err}
	}
	return resp, nil
}

func (c *Client) dispatch(ctx context.Context, req Request) (*Response, error) {
	switch req.Capability {
	case CapabilityLLM:
		if c.llm == nil {
			return nil, Permanent(fmt.Errorf("no LLM backend configured"))
		}
		return c.llm.Complete(ctx, req)
	case CapabilitySearch:
		if c.search == nil {
			return nil, Permanent(fmt.Errorf("no search backend configured"))
		}
		return c.search.Search(ctx, req)
	default:
		return nil, Permanent(fmt.Errorf("unknown capability %q", req.Capability))
	}
}
