package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis-backed Store.
type RedisOptions struct {
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSSkipVerify bool
	TLSServerName string
}

// RedisStore is a Store backed by a shared redis instance. Because the
// cache outlives the process, another process may refresh a credential
// first; callers must treat a fresh value appearing between their own reads
// as normal.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromOptions dials redis with the given options.
func NewRedisStoreFromOptions(opts RedisOptions) *RedisStore {
	var tlsConfig *tls.Config
	if opts.TLS {
		serverName := opts.TLSServerName
		if serverName == "" {
			serverName = opts.Addr
		}
		tlsConfig = &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: opts.TLSSkipVerify,
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: tlsConfig,
	})

	return NewRedisStore(client)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

// Close releases the underlying redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
