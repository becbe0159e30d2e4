// Package credentials caches and refreshes the short-lived credentials the
// platform issues for API access. The manager collapses concurrent refreshes
// for the same credential into a single network call, which matters because
// the platform rate-limits issuance and may invalidate previously issued
// tokens when a new one is requested.
package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/tidewave/wechatgo/pkg/store"
)

// Kind identifies which platform credential is being cached.
type Kind string

const (
	AccessToken Kind = "access_token"
	JSAPITicket Kind = "jsapi_ticket"
)

// Fetcher performs the network refresh against the platform. The returned
// ttl is the lifetime the platform reported for the new value.
type Fetcher interface {
	FetchCredential(ctx context.Context, appID string, kind Kind) (value string, ttl time.Duration, err error)
}

// DefaultSafetyMargin is subtracted from the platform-reported ttl so a
// cached credential is refreshed before it actually expires.
const DefaultSafetyMargin = 5 * time.Minute

// Manager is a read-through credential cache. A cached value within its
// lifetime is returned without network traffic; a miss triggers exactly one
// refresh regardless of how many callers observe it concurrently.
type Manager struct {
	store   store.Store
	fetcher Fetcher
	margin  time.Duration
	group   singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSafetyMargin overrides the refresh safety margin.
func WithSafetyMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.margin = margin
	}
}

func NewManager(s store.Store, fetcher Fetcher, options ...ManagerOption) *Manager {
	m := &Manager{
		store:   s,
		fetcher: fetcher,
		margin:  DefaultSafetyMargin,
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func cacheKey(appID string, kind Kind) string {
	return fmt.Sprintf("%s:%s", appID, kind)
}

// Get returns a valid credential, refreshing it if the cache has no live
// entry. Concurrent callers share one in-flight refresh and all receive its
// result, success or failure. A caller whose context expires while waiting
// detaches without cancelling the refresh for the remaining waiters.
func (m *Manager) Get(ctx context.Context, appID string, kind Kind) (string, error) {
	key := cacheKey(appID, kind)

	value, found, err := m.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("credential store read failed, falling back to refresh")
	} else if found {
		return value, nil
	}

	// The refresh runs on a context detached from the first caller so one
	// impatient waiter cannot cancel it for everyone else.
	refreshCtx := context.WithoutCancel(ctx)

	ch := m.group.DoChan(key, func() (interface{}, error) {
		return m.refresh(refreshCtx, key, appID, kind)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return "", result.Err
		}
		return result.Val.(string), nil
	}
}

func (m *Manager) refresh(ctx context.Context, key, appID string, kind Kind) (string, error) {
	// Re-check the store first: with a shared backend another process may
	// have refreshed the credential while we were queueing.
	if value, found, err := m.store.Get(ctx, key); err == nil && found {
		return value, nil
	}

	value, ttl, err := m.fetcher.FetchCredential(ctx, appID, kind)
	if err != nil {
		return "", fmt.Errorf("failed to refresh %s for %s: %w", kind, appID, err)
	}

	effectiveTTL := ttl - m.margin
	if effectiveTTL <= 0 {
		effectiveTTL = ttl
	}

	if err := m.store.Set(ctx, key, value, effectiveTTL); err != nil {
		// The fetched value is still valid for this caller even if caching
		// it failed; the next Get will refresh again.
		log.Warn().Err(err).Str("key", key).Msg("failed to cache refreshed credential")
	}

	log.Debug().Str("key", key).Dur("ttl", effectiveTTL).Msg("credential refreshed")

	return value, nil
}

// Invalidate evicts the cached credential so the next Get refreshes it.
// Call it when the platform rejects a credential it previously issued.
func (m *Manager) Invalidate(ctx context.Context, appID string, kind Kind) error {
	return m.store.Delete(ctx, cacheKey(appID, kind))
}
