package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces credential keys in a shared Redis.
const DefaultRedisPrefix = "vespa-admin:"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore implements CredentialStore on Redis so several agents or CLI
// hosts can share one session. Values are encrypted like SQLiteStore's.
type RedisStore struct {
	client        *redis.Client
	prefix        string
	encryptionKey []byte
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions, encryptionKey []byte) (*RedisStore, error) {
	if len(encryptionKey) == 0 {
		return nil, fmt.Errorf("redis store requires an encryption key")
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis store requires an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return newRedisStore(client, opts.Prefix, encryptionKey), nil
}

func newRedisStore(client *redis.Client, prefix string, encryptionKey []byte) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:        client,
		prefix:        prefix,
		encryptionKey: encryptionKey,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Get returns "", false, nil when the key is absent.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	encrypted, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get credential %q: %w", key, err)
	}

	plaintext, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt credential %q: %w", key, err)
	}
	return string(plaintext), true, nil
}

// SetAll writes all values with a single MSET.
func (s *RedisStore) SetAll(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	pairs := make([]any, 0, len(values)*2)
	for key, value := range values {
		encrypted, err := Encrypt([]byte(value), s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt credential %q: %w", key, err)
		}
		pairs = append(pairs, s.key(key), encrypted)
	}

	if err := s.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Delete removes keys with a single DEL.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(key)
	}

	if err := s.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	return nil
}

// Close closes the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
