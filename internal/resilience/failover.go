package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/aurasync/internal/observe"
)

var (
	// ErrAllFailed wraps the last backend error once a [Chain] is exhausted.
	ErrAllFailed = errors.New("resilience: all backends failed")

	// ErrNoBackends is returned by [NewChain] when given nothing to chain.
	ErrNoBackends = errors.New("resilience: chain needs at least one backend")
)

// Backend names one member of a failover chain.
type Backend[T any] struct {
	Name  string
	Value T
}

// BackendState is the breaker state of one chain member.
type BackendState struct {
	Name  string
	State State
}

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Chain tries its backends in order and gives each its own
// [CircuitBreaker]. Members are fixed at construction, so a Chain is safe for
// concurrent use.
type Chain[T any] struct {
	members []member[T]
}

// NewChain builds a chain from backends, the first being the preferred one.
// Every breaker gets cfg with the backend's name filled in.
func NewChain[T any](cfg CircuitBreakerConfig, backends ...Backend[T]) (*Chain[T], error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	c := &Chain[T]{members: make([]member[T], len(backends))}
	for i, b := range backends {
		bc := cfg
		bc.Name = b.Name
		c.members[i] = member[T]{name: b.Name, value: b.Value, breaker: NewCircuitBreaker(bc)}
	}
	return c, nil
}

// Primary returns the first backend.
func (c *Chain[T]) Primary() T { return c.members[0].value }

// States lists every member's breaker state, primary first.
func (c *Chain[T]) States() []BackendState {
	out := make([]BackendState, len(c.members))
	for i, m := range c.members {
		out[i] = BackendState{Name: m.name, State: m.breaker.State()}
	}
	return out
}

// Healthy reports whether any member's breaker is not open.
func (c *Chain[T]) Healthy() bool {
	for _, m := range c.members {
		if m.breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Call runs fn against the members of c until one succeeds. Members behind
// an open breaker are skipped. A done ctx ends the walk with ctx.Err().
// Otherwise the error of an exhausted chain matches both [ErrAllFailed] and
// the last member's error.
func Call[T, R any](ctx context.Context, c *Chain[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	log := observe.Logger(ctx)
	for i, m := range c.members {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var out R
		err := m.breaker.Execute(func() error {
			var callErr error
			out, callErr = fn(ctx, m.value)
			return callErr
		})
		if err == nil {
			if i > 0 {
				log.Info("served by fallback backend", "backend", m.name, "position", i)
			}
			return out, nil
		}
		lastErr = err
		switch {
		case errors.Is(err, ErrCircuitOpen):
			log.Debug("backend skipped, breaker open", "backend", m.name)
		case errors.Is(err, context.Canceled):
			return zero, err
		default:
			log.Warn("backend failed", "backend", m.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
