package pgkit

import (
	"context"
	"sync"
)

// Registry holds the process-wide pool so application code can reach it
// without threading the handle through every call. It is a slot, not a
// manager: it never initializes or closes what it holds.
type Registry struct {
	mu   sync.RWMutex
	pool *Pool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register stores p and returns the previously registered pool, if any.
// The caller stays responsible for closing a replaced pool. Registering
// nil clears the slot.
func (r *Registry) Register(p *Pool) *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.pool
	r.pool = p
	return prev
}

// Pool returns the registered pool
func (r *Registry) Pool() (*Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.pool == nil {
		return nil, &Error{Code: CodeNotRegistered, Message: "no pool registered, call Register first", Op: "Registry.Pool"}
	}
	return r.pool, nil
}

// GetSession leases a session from the registered pool
func (r *Registry) GetSession(ctx context.Context) (*Session, error) {
	p, err := r.Pool()
	if err != nil {
		return nil, err
	}
	return p.GetSession(ctx)
}

// WithSession executes fn within a session scope on the registered pool
func (r *Registry) WithSession(ctx context.Context, fn SessionFunc) error {
	p, err := r.Pool()
	if err != nil {
		return err
	}
	return p.WithSession(ctx, fn)
}

// defaultRegistry backs the package-level accessors
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry behind the package-level accessors
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register stores p in the default registry and returns the pool it
// replaced, if any
func Register(p *Pool) *Pool {
	return defaultRegistry.Register(p)
}

// RegisteredPool returns the pool held by the default registry
func RegisteredPool() (*Pool, error) {
	return defaultRegistry.Pool()
}

// GetSession leases a session from the default registry's pool
func GetSession(ctx context.Context) (*Session, error) {
	return defaultRegistry.GetSession(ctx)
}

// WithSession executes fn within a session scope on the default registry's
// pool
func WithSession(ctx context.Context, fn SessionFunc) error {
	return defaultRegistry.WithSession(ctx, fn)
}
