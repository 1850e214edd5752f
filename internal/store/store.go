// Package store provides the key-value client abstraction the retention
// synchronizer persists through, with Redis, SQLite, and in-memory backends.
package store

import (
	"context"
	"errors"
	"fmt"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
)

// ErrKeyNotFound is returned by Get when no value exists for the key.
// Callers treat it as "no retained state for this identity", never as a
// failure of the pass.
var ErrKeyNotFound = errors.New("store: key not found")

// KV is a minimal key-value client. One logical operation at a time; the
// synchronizer issues calls sequentially and expects no internal batching.
type KV interface {
	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns every key matching the glob pattern ("*" for all).
	// This is a full scan of the store and is costly; it is only used by
	// the reconciliation pass, which runs once per daemon startup.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options carries backend selection and connection settings.
type Options struct {
	Backend string // memory|redis|sqlite
	Addr    string // redis address (host:port)
	DB      int    // redis database number
	Path    string // sqlite file path, or ":memory:"
}

// Open constructs the configured backend.
func Open(opts Options) (KV, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(opts.Addr, opts.DB), nil
	case BackendSQLite:
		return NewSQLiteStore(opts.Path)
	default:
		return nil, reterrors.New(reterrors.CategoryConfig, reterrors.SeverityFatal,
			fmt.Sprintf("unknown store backend: %q", opts.Backend))
	}
}
