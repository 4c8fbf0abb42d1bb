// Package container implements the IoC container shared by every framework component.
//
// Components are registered under string aliases, either as factories invoked on each
// resolution or as singletons constructed once. Factories receive the container itself,
// so dependencies are declared by the factory that needs them rather than discovered
// through reflection.
package container

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Params carries per-resolution arguments to a factory.
type Params map[string]any

// Factory constructs a component. The container passed in is the one performing the
// resolution, so nested Get calls participate in cycle detection.
type Factory func(c *Container, params Params) (any, error)

// Saturable components are initialised by the container right after construction.
type Saturable interface {
	Init(c *Container) error
}

type bindingKind int

const (
	kindFactory bindingKind = iota
	kindSingleton
	kindAlias
)

type binding struct {
	kind    bindingKind
	factory Factory
	target  string

	// mu guards construction of singletons. Failed constructions are not cached.
	mu          sync.Mutex
	constructed bool
	instance    any
}

type registry struct {
	mu       sync.RWMutex
	bindings map[string]*binding
}

// Container holds bindings keyed by alias. It is safe for concurrent use.
//
// Containers handed to factories share the registry with their parent and carry the
// resolution chain that led to them.
type Container struct {
	reg   *registry
	chain []string
}

// Option configures a Container.
type Option func(*Container)

// WithInstances pre-binds ready values as singletons.
func WithInstances(instances map[string]any) Option {
	return func(c *Container) {
		for alias, value := range instances {
			c.Instance(alias, value)
		}
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{reg: &registry{bindings: make(map[string]*binding)}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind registers a factory invoked on every Get.
func (c *Container) Bind(alias string, factory Factory) {
	c.set(alias, &binding{kind: kindFactory, factory: factory})
}

// Singleton registers a factory whose result is constructed once and cached.
func (c *Container) Singleton(alias string, factory Factory) {
	c.set(alias, &binding{kind: kindSingleton, factory: factory})
}

// Instance binds an existing value as a singleton.
func (c *Container) Instance(alias string, value any) {
	c.set(alias, &binding{kind: kindSingleton, instance: value, constructed: true})
}

// Alias makes alias resolve to whatever target resolves to.
func (c *Container) Alias(alias, target string) {
	c.set(alias, &binding{kind: kindAlias, target: target})
}

func (c *Container) set(alias string, b *binding) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	c.reg.bindings[alias] = b
}

// Has reports whether alias is bound.
func (c *Container) Has(alias string) bool {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	_, ok := c.reg.bindings[alias]
	return ok
}

// Remove drops the binding for alias. Cached singleton instances are discarded.
func (c *Container) Remove(alias string) {
	c.reg.mu.Lock()
	defer c.reg.mu.Unlock()
	delete(c.reg.bindings, alias)
}

// Aliases returns all bound aliases in sorted order.
func (c *Container) Aliases() []string {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	out := make([]string, 0, len(c.reg.bindings))
	for alias := range c.reg.bindings {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

// Get resolves alias with optional params.
func (c *Container) Get(alias string, params Params) (any, error) {
	return c.resolve(alias, params, c.chain)
}

func (c *Container) lookup(alias string) (*binding, bool) {
	c.reg.mu.RLock()
	defer c.reg.mu.RUnlock()
	b, ok := c.reg.bindings[alias]
	return b, ok
}

func (c *Container) resolve(alias string, params Params, chain []string) (any, error) {
	for _, seen := range chain {
		if seen == alias {
			return nil, &Error{
				Code:  CodeCircular,
				Alias: alias,
				Err:   fmt.Errorf("resolution chain %s", strings.Join(append(chain, alias), " -> ")),
			}
		}
	}
	chain = append(chain[:len(chain):len(chain)], alias)

	b, ok := c.lookup(alias)
	if !ok {
		return nil, &Error{Code: CodeNotBound, Alias: alias}
	}

	switch b.kind {
	case kindAlias:
		return c.resolve(b.target, params, chain)
	case kindSingleton:
		return c.singleton(alias, b, params, chain)
	default:
		return c.construct(alias, b.factory, params, chain)
	}
}

func (c *Container) singleton(alias string, b *binding, params Params, chain []string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.constructed {
		return b.instance, nil
	}
	instance, err := c.construct(alias, b.factory, params, chain)
	if err != nil {
		return nil, err
	}
	b.instance, b.constructed = instance, true
	return instance, nil
}

func (c *Container) construct(alias string, factory Factory, params Params, chain []string) (any, error) {
	if params == nil {
		params = Params{}
	}

	scoped := &Container{reg: c.reg, chain: chain}
	instance, err := factory(scoped, params)
	if err != nil {
		return nil, &Error{Code: CodeConstruction, Alias: alias, Err: err}
	}

	if saturable, ok := instance.(Saturable); ok {
		if err := saturable.Init(scoped); err != nil {
			return nil, &Error{Code: CodeConstruction, Alias: alias, Err: fmt.Errorf("init: %w", err)}
		}
	}
	return instance, nil
}

// Resolve fetches alias and asserts its type.
func Resolve[T any](c *Container, alias string) (T, error) {
	var zero T
	value, err := c.Get(alias, nil)
	if err != nil {
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		return zero, &Error{
			Code:  CodeTypeMismatch,
			Alias: alias,
			Err:   fmt.Errorf("got %T, want %T", value, zero),
		}
	}
	return typed, nil
}

// MustResolve is Resolve that panics on failure. Intended for bootstrapping code.
func MustResolve[T any](c *Container, alias string) T {
	value, err := Resolve[T](c, alias)
	if err != nil {
		panic(err)
	}
	return value
}
