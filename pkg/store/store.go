// Package store provides TTL-bounded key/value caches for short-lived
// platform credentials. Backends are safe for concurrent use and may be
// shared between processes (the redis backend in particular).
package store

import (
	"context"
	"time"
)

// Store is the cache contract the credential manager depends on. Get
// reports whether the key was present; an expired entry is a miss. A zero
// or negative ttl on Set means the entry never expires.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
