// Package storage persists the API credential pair (and the watcher's alert
// bookkeeping) outside the process so a restarted client resumes its session.
package storage

import (
	"context"
	"fmt"
)

// CredentialStore is a small durable key-value store for credentials.
// Missing keys are reported as ok=false, never as an empty string.
type CredentialStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// SetAll writes every key in values atomically.
	SetAll(ctx context.Context, values map[string]string) error
	// Delete removes keys atomically. Deleting a missing key is not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Options selects and configures a CredentialStore backend.
type Options struct {
	Backend       string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open creates the CredentialStore named by opts.Backend.
// The key is ignored by the memory backend.
func Open(ctx context.Context, opts Options, key []byte) (CredentialStore, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(opts.DBPath, key)
	case BackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Prefix:   opts.RedisPrefix,
		}, key)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential store backend %q", opts.Backend)
	}
}
