package identity

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Factory builds a provider from its configuration. It may perform network
// calls (discovery), so the registry builds each provider lazily and once.
type Factory func(ctx context.Context, cfg Config) (Provider, error)

type registration struct {
	factory Factory
	cfg     Config
}

// Registry selects providers by tag.
type Registry struct {
	mu        sync.RWMutex
	regs      map[string]registration
	instances map[string]Provider
	group     singleflight.Group
}

func NewRegistry() *Registry {
	return &Registry{
		regs:      make(map[string]registration),
		instances: make(map[string]Provider),
	}
}

// Register binds a tag to a factory and its configuration.
func (r *Registry) Register(name string, f Factory, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[name] = registration{factory: f, cfg: cfg}
	delete(r.instances, name)
}

// Add registers an already-built provider (tests, custom wiring).
func (r *Registry) Add(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[p.Name()] = registration{}
	r.instances[p.Name()] = p
}

// Get returns the provider for the tag, building it on first use.
// Concurrent first calls share a single factory invocation.
func (r *Registry) Get(ctx context.Context, name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.instances[name]
	reg, known := r.regs[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}
	if !known || reg.factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	v, err, _ := r.group.Do(name, func() (any, error) {
		r.mu.RLock()
		p, ok := r.instances[name]
		r.mu.RUnlock()
		if ok {
			return p, nil
		}
		p, err := reg.factory(ctx, reg.cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
		}
		r.mu.Lock()
		r.instances[name] = p
		r.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

// Has reports whether the tag is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.regs[name]
	return ok
}

// Names returns the registered tags, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.regs))
	for n := range r.regs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
