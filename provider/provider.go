package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
)

// Provider is the uniform contract every backend adapter implements.
// Implementations must respect context cancellation and must surface a
// backend session id in the result whenever the backend protocol supports
// conversation continuity.
type Provider interface {
	Descriptor() core.ProviderDescriptor
	Invoke(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error)
	InvokeAuth(ctx context.Context, req core.InvocationRequest) (core.InvocationResult, error)
}

// Config is the explicit environment handed to provider factories. Env is a
// snapshot of key/value configuration (command overrides, base URLs, API
// keys); the runtime never reads ambient process state itself.
type Config struct {
	Env    map[string]string
	Logger logging.Logger
}

// Getenv returns the configured value for key, or def when absent/empty.
func (c Config) Getenv(key, def string) string {
	if v, ok := c.Env[key]; ok && v != "" {
		return v
	}
	return def
}

// Factory constructs a provider from runtime configuration. Registered per
// provider id; descriptors are immutable after registration.
type Factory func(cfg Config) (Provider, error)

// Registry maps provider ids to factories and lazily constructed providers.
// Safe for concurrent use.
type Registry struct {
	cfg Config

	mu        sync.RWMutex
	factories map[string]Factory
	cache     map[string]Provider
}

// NewRegistry constructs a Registry with the given configuration overrides.
func NewRegistry(optFns ...func(c *Config)) *Registry {
	cfg := Config{Env: map[string]string{}, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&cfg)
	}
	return &Registry{
		cfg:       cfg,
		factories: make(map[string]Factory),
		cache:     make(map[string]Provider),
	}
}

// Register adds a provider factory under id, replacing any previous entry.
func (r *Registry) Register(id string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[id] = f
	delete(r.cache, id)
}

// Resolve returns the provider for id, constructing it on first use.
func (r *Registry) Resolve(id string) (Provider, error) {
	r.mu.RLock()
	if p, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	f, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, &core.ProviderNotFoundError{ProviderID: id}
	}

	p, err := f(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("construct provider %q: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[id]; ok {
		return cached, nil
	}
	r.cache[id] = p
	return p, nil
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for id := range r.factories {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
