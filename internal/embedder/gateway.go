package embedder

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// DefaultTimeout bounds a single embedding call. The provider call is
// not cancelled server-side when the bound is hit; the Gateway simply
// stops waiting and reports ErrTimeout.
const DefaultTimeout = 30 * time.Second

// Gateway wraps an embedding provider with timeout enforcement, failure
// isolation, and model lifecycle management. The model identity is fixed
// at construction; switching models means constructing a new Gateway
// (and reindexing the corpus, since old vectors are incompatible).
type Gateway struct {
	cfg     Config
	factory func(Config) (Provider, error)
	timeout time.Duration
	cache   *Cache

	mu       sync.Mutex
	provider Provider
}

// GatewayOption customises a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithFactory overrides provider construction. Tests use this to inject
// fakes.
func WithFactory(f func(Config) (Provider, error)) GatewayOption {
	return func(g *Gateway) { g.factory = f }
}

// NewGateway creates a Gateway for cfg. The provider is not constructed
// until the first Embed call, so the cold-start cost of loading the
// model is paid lazily.
func NewGateway(cfg Config, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		cfg:     cfg,
		factory: newProvider,
		timeout: DefaultTimeout,
		cache:   NewCache(cfg.CacheSize),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the configured model identifier.
func (g *Gateway) Model() string {
	return g.cfg.Model
}

// Provider returns the configured provider name.
func (g *Gateway) Provider() string {
	return g.cfg.Provider
}

// Embed returns the vector for text. It fails with ErrTimeout when
// generation exceeds the Gateway's bound and with ErrFailed on any
// provider error; neither is retried here.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	hash := ComputeHash(text)
	if vec, ok := g.cache.Get(hash); ok {
		return vec, nil
	}

	p, err := g.acquireProvider()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vec, err := p.Embed(callCtx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrFailed, err)
	}

	g.cache.Set(hash, vec)
	return vec, nil
}

// Dimension returns the vector dimension observed so far, or 0 before
// the first successful embedding.
func (g *Gateway) Dimension() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.provider == nil {
		return 0
	}
	return g.provider.Dimension()
}

// Reset disposes the underlying provider and forces a garbage collection
// pass so the inference runtime can release memory. The next Embed call
// pays the cold-start cost again.
func (g *Gateway) Reset() {
	g.mu.Lock()
	if g.provider != nil {
		_ = g.provider.Close()
		g.provider = nil
	}
	g.mu.Unlock()
	runtime.GC()
}

// Close releases the provider, if loaded.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.provider == nil {
		return nil
	}
	err := g.provider.Close()
	g.provider = nil
	return err
}

// acquireProvider lazily constructs the provider on first use.
func (g *Gateway) acquireProvider() (Provider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.provider != nil {
		return g.provider, nil
	}
	p, err := g.factory(g.cfg)
	if err != nil {
		return nil, err
	}
	g.provider = p
	return p, nil
}
