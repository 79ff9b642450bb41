package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("snapshot not found")
	// ErrQuotaExceeded is returned by Set when the backend is full.
	ErrQuotaExceeded = errors.New("snapshot storage quota exceeded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("snapshot storage closed")
)

// Store is the durable key-value slot chat snapshots are written to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Scoped namespaces every key of the wrapped store with a prefix, the way a
// browser origin namespaces localStorage.
type Scoped struct {
	inner  Store
	prefix string
}

// NewScoped wraps inner so keys become "<namespace>:<key>".
func NewScoped(inner Store, namespace string) *Scoped {
	return &Scoped{inner: inner, prefix: namespace + ":"}
}

func (s *Scoped) Get(ctx context.Context, key string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *Scoped) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *Scoped) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

// Close is a no-op; the shared backend outlives its scopes.
func (s *Scoped) Close() error {
	return nil
}

var _ Store = (*Scoped)(nil)
