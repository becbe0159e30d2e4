package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, found, err := s.Get(ctx, "wx123:access_token")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "wx123:access_token", "TOKEN", time.Minute))

	value, found, err := s.Get(ctx, "wx123:access_token")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "TOKEN", value)

	require.NoError(t, s.Delete(ctx, "wx123:access_token"))

	_, found, err = s.Get(ctx, "wx123:access_token")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	// ttl 50s models a 60s credential stored with a 10s safety margin
	require.NoError(t, s.Set(ctx, "key", "value", 50*time.Second))

	now = now.Add(45 * time.Second)
	_, found, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found, "entry must still be live at t=45s")

	now = now.Add(6 * time.Second)
	_, found, err = s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found, "entry must be expired at t=51s")
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(ctx, "key", "value", 0))

	now = now.Add(1000 * time.Hour)
	_, found, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i%4)
			for j := 0; j < 100; j++ {
				_ = s.Set(ctx, key, fmt.Sprintf("value-%d-%d", i, j), time.Minute)
				_, _, _ = s.Get(ctx, key)
				if j%10 == 0 {
					_ = s.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}
