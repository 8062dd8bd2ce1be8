package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/aurasync/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned when a config entry names a provider
// no factory was registered for.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory builds a model provider from its config entry.
type Factory func(ProviderEntry) (llm.Provider, error)

// Labeled is a provider together with the label used in logs, metrics and
// breaker names, such as "diagram/gemini" or "diagram/anthropic#1".
type Labeled struct {
	Label    string
	Provider llm.Provider
}

// Registry maps provider names from the config to factories. Safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs factory under name, replacing any earlier one.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds the provider entry names.
func (r *Registry) Create(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Chain builds the failover order for component: the component's own
// provider first, then every shared fallback in config order.
func (r *Registry) Chain(component string, providers ProvidersConfig) ([]Labeled, error) {
	entry := providers.Entry(component)
	primary, err := r.Create(entry)
	if err != nil {
		return nil, fmt.Errorf("config: %s provider %q: %w", component, entry.Name, err)
	}
	chain := make([]Labeled, 0, 1+len(providers.Fallbacks))
	chain = append(chain, Labeled{Label: component + "/" + entry.Name, Provider: primary})

	for i, fb := range providers.Fallbacks {
		p, err := r.Create(fb)
		if err != nil {
			return nil, fmt.Errorf("config: %s fallback %d %q: %w", component, i+1, fb.Name, err)
		}
		chain = append(chain, Labeled{Label: fmt.Sprintf("%s/%s#%d", component, fb.Name, i+1), Provider: p})
	}
	return chain, nil
}
