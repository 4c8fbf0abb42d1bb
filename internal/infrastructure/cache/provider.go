package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config describes the stores a Provider can open.
type Config struct {
	Default         string // memory or redis
	Prefix          string
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// Provider opens stores lazily and hands out the same store per name.
type Provider struct {
	cfg    Config
	logger *zap.Logger

	allowInMemoryFallback bool

	mu     sync.Mutex
	stores map[string]Store
}

// ProviderOption is a functional option for configuring the provider
type ProviderOption func(*Provider)

// WithLogger sets the logger for the provider
func WithLogger(logger *zap.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithInMemoryFallback controls whether the memory store replaces redis when redis is
// unavailable. Default is true.
func WithInMemoryFallback(allow bool) ProviderOption {
	return func(p *Provider) {
		p.allowInMemoryFallback = allow
	}
}

// WithStore registers a ready store under name.
func WithStore(name string, store Store) ProviderOption {
	return func(p *Provider) {
		p.stores[name] = store
	}
}

// NewProvider creates a store provider.
func NewProvider(cfg Config, opts ...ProviderOption) *Provider {
	if cfg.Default == "" {
		cfg.Default = "memory"
	}
	p := &Provider{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		stores:                make(map[string]Store),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Default returns the configured default store.
func (p *Provider) Default() (Store, error) {
	return p.Store(p.cfg.Default)
}

// Store returns the store registered under name, opening "memory" and "redis" on demand.
func (p *Provider) Store(name string) (Store, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if store, ok := p.stores[name]; ok {
		return store, nil
	}

	var store Store
	switch name {
	case "memory":
		store = NewMemoryStore(p.cfg.CleanupInterval)
	case "redis":
		redisStore, err := NewRedisStore(p.cfg.Redis, p.cfg.Prefix)
		if err != nil {
			if !p.allowInMemoryFallback {
				return nil, fmt.Errorf("Redis required for cache but unavailable: %w", err)
			}
			p.logger.Warn("Redis unavailable, falling back to in-memory cache store. "+
				"Cached values will not be shared across instances.",
				zap.Error(err),
			)
			store = NewMemoryStore(p.cfg.CleanupInterval)
		} else {
			store = redisStore
		}
	default:
		return nil, fmt.Errorf("cache: unknown store %q", name)
	}

	p.stores[name] = store
	return store, nil
}

// Names lists the stores opened so far.
func (p *Provider) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.stores))
	for name := range p.stores {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close closes every opened store.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, store := range p.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	p.stores = make(map[string]Store)
	return errors.Join(errs...)
}
