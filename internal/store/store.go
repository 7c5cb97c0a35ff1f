// Package store persists playground state (the last good source and the
// toggle states) in a flat string key-value store. Every backend is optional:
// when none is configured or reachable the playground falls back to Noop and
// keeps working without durability.
package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Store is a string key-value backend.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Close releases the backend's resources.
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend  string // none, memory, sqlite, postgres, redis
	Path     string // sqlite database file
	DSN      string // postgres connection string
	Addr     string // redis address
	Password string // redis password
	DB       int    // redis database number
	Prefix   string // prepended to every key

	// Retry governs reconnect attempts for postgres and redis
	// (default: DefaultRetryConfig).
	Retry *RetryConfig
}

// Open creates the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case "", "none":
		return Noop{}, nil
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(ctx, opts.Path)
	case "postgres":
		return connectWithRetry(ctx, "postgres", opts.retry(), func(ctx context.Context) (Store, error) {
			return NewPostgres(ctx, opts.DSN)
		})
	case "redis":
		return connectWithRetry(ctx, "redis", opts.retry(), func(ctx context.Context) (Store, error) {
			return NewRedis(ctx, opts.Addr, opts.Password, opts.DB)
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func (o Options) retry() RetryConfig {
	if o.Retry != nil {
		return *o.Retry
	}
	return DefaultRetryConfig()
}

// OpenBestEffort opens the configured backend, falling back to Noop with a
// logged warning when it cannot be reached.
func OpenBestEffort(ctx context.Context, opts Options) *Adapter {
	s, err := Open(ctx, opts)
	if err != nil {
		log.Printf("[Store] %s backend unavailable, persistence disabled: %v", opts.Backend, err)
		s = Noop{}
	}
	return NewAdapter(s, opts.Prefix)
}

// Noop is the store used when persistence is unavailable: reads find
// nothing and writes are dropped.
type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (Noop) Set(context.Context, string, string) error         { return nil }
func (Noop) Close() error                                      { return nil }

// Memory is a process-local store.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// DefaultOpTimeout bounds each best-effort read or write.
const DefaultOpTimeout = 2 * time.Second

// Adapter is the best-effort persistence port used by the playground: it
// never returns errors, it logs them and behaves as if the store were absent.
type Adapter struct {
	store   Store
	prefix  string
	timeout time.Duration
}

// NewAdapter wraps s, prefixing every key with prefix.
func NewAdapter(s Store, prefix string) *Adapter {
	if s == nil {
		s = Noop{}
	}
	return &Adapter{store: s, prefix: prefix, timeout: DefaultOpTimeout}
}

// Namespace returns an adapter over the same store whose keys are scoped to
// ns, giving each browser client its own key space.
func (a *Adapter) Namespace(ns string) *Adapter {
	return &Adapter{store: a.store, prefix: a.prefix + ns + ":", timeout: a.timeout}
}

// Get returns the value for key, or false when it is absent or the store
// failed.
func (a *Adapter) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	v, ok, err := a.store.Get(ctx, a.prefix+key)
	if err != nil {
		log.Printf("[Store] get %q failed: %v", a.prefix+key, err)
		return "", false
	}
	return v, ok
}

// Set stores value under key. Failures are logged and dropped.
func (a *Adapter) Set(key, value string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.store.Set(ctx, a.prefix+key, value); err != nil {
		log.Printf("[Store] set %q failed: %v", a.prefix+key, err)
	}
}

// Close closes the underlying store.
func (a *Adapter) Close() error {
	return a.store.Close()
}
