// Package gateway issues single LLM generation calls with a bounded,
// fixed-delay retry on transient provider failures.
//
// A Gateway is bound to one pipeline component ("simplify", "visual", ...)
// and one [llm.Provider]. Retries are invisible to the caller except for
// latency: the same prompt is resent unchanged and only the final outcome is
// returned.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/aurasync/internal/observe"
	"github.com/MrWong99/aurasync/pkg/provider/llm"
)

// Default retry policy.
const (
	DefaultMaxRetries = 2
	DefaultDelay      = 1200 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Gateway wraps an [llm.Provider] with the retry policy.
type Gateway struct {
	component   string
	provider    llm.Provider
	maxRetries  int
	delay       time.Duration
	sleep       SleepFunc
	shouldRetry func(error) bool
	onRetry     func(attempt int, err error)
	metrics     *observe.Metrics

	systemPrompt string
	temperature  float64
	maxTokens    int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMaxRetries sets how many additional attempts follow a transient
// failure. Zero disables retrying; negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// WithDelay sets the fixed pause between attempts.
func WithDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d >= 0 {
			g.delay = d
		}
	}
}

// WithSleep replaces the timer-based wait between attempts. Tests use it to
// observe delays without waiting.
func WithSleep(fn SleepFunc) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.sleep = fn
		}
	}
}

// WithShouldRetry overrides [IsTransient] as the retry predicate.
func WithShouldRetry(fn func(error) bool) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.shouldRetry = fn
		}
	}
}

// WithOnRetry registers a callback invoked before each retry pause with the
// 1-based retry number and the error that triggered it.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(g *Gateway) { g.onRetry = fn }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// WithSystemPrompt sets a system prompt sent with every request.
func WithSystemPrompt(s string) Option {
	return func(g *Gateway) { g.systemPrompt = s }
}

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) Option {
	return func(g *Gateway) { g.temperature = t }
}

// WithMaxTokens caps the completion length of every request.
func WithMaxTokens(n int) Option {
	return func(g *Gateway) { g.maxTokens = n }
}

// New returns a Gateway for component backed by provider.
func New(component string, provider llm.Provider, opts ...Option) (*Gateway, error) {
	if component == "" {
		return nil, errors.New("gateway: component must not be empty")
	}
	if provider == nil {
		return nil, fmt.Errorf("gateway: %s: provider must not be nil", component)
	}
	g := &Gateway{
		component:   component,
		provider:    provider,
		maxRetries:  DefaultMaxRetries,
		delay:       DefaultDelay,
		sleep:       sleepTimer,
		shouldRetry: IsTransient,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g, nil
}

// Component returns the pipeline component this gateway serves.
func (g *Gateway) Component() string { return g.component }

// Generate sends prompt as a single user message and returns the raw model
// text.
//
// A transient failure is retried up to the configured number of times with a
// fixed pause in between. Once retries are exhausted the returned error
// wraps [ErrProviderUnavailable] and the last provider error. Non-transient
// failures are returned immediately, wrapped. If ctx ends during a pause the
// last provider error is returned together with ctx.Err().
func (g *Gateway) Generate(ctx context.Context, prompt string) (_ string, err error) {
	ctx, span := observe.StartSpan(ctx, "gateway.generate", observe.AttrComponent.String(g.component))
	defer func() {
		observe.Fail(span, err)
		span.End()
	}()

	req := llm.CompletionRequest{
		SystemPrompt: g.systemPrompt,
		Messages:     []llm.Message{llm.UserMessage(prompt)},
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
	}
	log := observe.Logger(ctx).With("component", g.component)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		span.SetAttributes(observe.AttrAttempt.Int(attempt + 1))
		start := time.Now()
		resp, err := g.provider.Complete(ctx, req)
		g.metrics.RecordLLMDuration(ctx, g.component, time.Since(start).Seconds())
		if err == nil {
			g.metrics.RecordProviderRequest(ctx, g.component, "ok")
			if resp == nil {
				return "", nil
			}
			g.metrics.RecordTokens(ctx, g.component, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
			return resp.Content, nil
		}
		lastErr = err
		g.metrics.RecordProviderRequest(ctx, g.component, "error")

		if ctx.Err() != nil {
			g.metrics.RecordProviderError(ctx, g.component, "canceled")
			return "", fmt.Errorf("gateway: %s: %w", g.component, err)
		}
		if !g.shouldRetry(err) {
			g.metrics.RecordProviderError(ctx, g.component, "permanent")
			return "", fmt.Errorf("gateway: %s: %w", g.component, err)
		}
		g.metrics.RecordProviderError(ctx, g.component, "transient")

		if attempt == g.maxRetries {
			break
		}

		g.metrics.RecordRetry(ctx, g.component)
		log.Warn("transient provider failure, retrying",
			"attempt", attempt+1,
			"max_retries", g.maxRetries,
			"delay", g.delay,
			"err", err,
		)
		if g.onRetry != nil {
			g.onRetry(attempt+1, err)
		}
		if serr := g.sleep(ctx, g.delay); serr != nil {
			return "", fmt.Errorf("gateway: %s: %w", g.component, errors.Join(serr, lastErr))
		}
	}

	log.Error("provider unavailable after retries", "retries", g.maxRetries, "err", lastErr)
	return "", fmt.Errorf("gateway: %s: %w: %w", g.component, ErrProviderUnavailable, lastErr)
}

// sleepTimer waits for d using a timer, aborting early when ctx is done.
func sleepTimer(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
