package resilience

import (
	"context"

	"github.com/MrWong99/aurasync/pkg/provider/llm"
)

var _ llm.Provider = (*LLMChain)(nil)

// LLMChain is an [llm.Provider] that fails over across model backends.
type LLMChain struct {
	*Chain[llm.Provider]
}

// NewLLMChain chains backends in order under per-backend breakers built
// from cfg.
func NewLLMChain(cfg CircuitBreakerConfig, backends ...Backend[llm.Provider]) (*LLMChain, error) {
	c, err := NewChain(cfg, backends...)
	if err != nil {
		return nil, err
	}
	return &LLMChain{Chain: c}, nil
}

func (c *LLMChain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(ctx, c.Chain, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Capabilities reports the primary backend's limits; prompts are sized for
// the model the component prefers.
func (c *LLMChain) Capabilities() llm.ModelCapabilities {
	return c.Primary().Capabilities()
}
