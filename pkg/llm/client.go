// Package llm provides provider-backed completion clients with retry,
// token accounting, and an optional deterministic-response cache.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/minuteman-ai/minuteman/pkg/config"
	"github.com/minuteman-ai/minuteman/pkg/models"
	"github.com/minuteman-ai/minuteman/pkg/tokens"
)

// Request is a single completion request. SystemPrompt may be empty.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Model        string // empty = provider default
	MaxTokens    int    // 0 = provider default
	Temperature  float64
}

// Response carries the completion text plus token accounting.
type Response struct {
	Content string
	Model   string
	Usage   models.TokenUsage
}

// Client is the completion interface the analyzers depend on.
type Client interface {
	// Complete performs a single completion, retrying transient failures.
	Complete(ctx context.Context, req Request) (*Response, error)

	// CountTokens estimates the token count of text for this client's model.
	CountTokens(text string) int
}

// Sentinel errors for classifying provider failures.
var (
	ErrRateLimited   = errors.New("llm: rate limited")
	ErrProviderError = errors.New("llm: provider error")
	ErrEmptyResponse = errors.New("llm: empty response")
)

// provider is the raw, single-attempt completion surface implemented
// by the OpenAI and Anthropic backends.
type provider interface {
	complete(ctx context.Context, req Request) (*Response, error)
	defaultModel() string
}

// client wraps a provider with retry, timeout, and caching.
type client struct {
	provider provider
	cfg      *config.LLMConfig
	counter  tokens.Counter
	cache    *responseCache
	logger   *slog.Logger
}

// NewClient builds a Client for the configured provider.
func NewClient(cfg *config.LLMConfig, logger *slog.Logger) (Client, error) {
	var p provider
	switch cfg.Provider {
	case config.LLMProviderOpenAI:
		p = newOpenAIProvider(cfg)
	case config.LLMProviderAnthropic:
		p = newAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}

	var cache *responseCache
	if cfg.CacheEnabled {
		cache = newResponseCache(cfg.CacheTTL)
	}

	return &client{
		provider: p,
		cfg:      cfg,
		counter:  tokens.NewCounter(cfg.Model),
		cache:    cache,
		logger:   logger.With("component", "llm"),
	}, nil
}

func (c *client) CountTokens(text string) int {
	return c.counter.Count(text)
}

func (c *client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Model == "" {
		req.Model = c.provider.defaultModel()
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}

	// Only deterministic requests are cacheable.
	cacheable := c.cache != nil && req.Temperature == 0
	var key string
	if cacheable {
		key = cacheKey(req)
		if resp, ok := c.cache.get(key); ok {
			c.logger.Debug("llm cache hit", "model", req.Model)
			return resp, nil
		}
	}

	resp, err := c.completeWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	if cacheable {
		c.cache.put(key, resp)
	}
	return resp, nil
}

func (c *client) completeWithRetry(ctx context.Context, req Request) (*Response, error) {
	var resp *Response

	operation := func() error {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()
		}

		r, err := c.provider.complete(attemptCtx, req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if r.Content == "" {
			return backoff.Permanent(ErrEmptyResponse)
		}
		resp = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryDelay
	policy.MaxInterval = 30 * time.Second

	retries := uint64(c.cfg.MaxRetries)
	if retries == 0 {
		retries = 1
	}
	b := backoff.WithMaxRetries(policy, retries-1)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("llm call failed, retrying",
			"model", req.Model,
			"wait", wait,
			"error", err)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("llm completion failed: %w", err)
	}
	return resp, nil
}

// isRetryable reports whether a provider failure is worth another attempt.
// Rate limits, timeouts, and 5xx responses retry; everything else fails fast.
func isRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, ErrProviderError)
}
