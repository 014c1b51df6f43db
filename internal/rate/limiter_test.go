package rate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalBucketExhaustionAndRefill(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l, err := New(Config{
		Capacity: 5,
		Interval: time.Minute,
		Scope:    ScopeGlobal,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		assert.True(t, l.TryConsume(""), "call %d within capacity must pass", i+1)
	}
	assert.False(t, l.TryConsume(""), "sixth call must be rejected")
	assert.Equal(t, 0, l.Remaining(""), "rejection must not mutate the bucket")

	// Partial window: still exhausted.
	now = now.Add(59 * time.Second)
	assert.False(t, l.TryConsume(""))

	// Full window elapsed: capacity replenishes.
	now = now.Add(2 * time.Second)
	assert.True(t, l.TryConsume(""))
	assert.Equal(t, 4, l.Remaining(""))
}

func TestRefillSkipsMultipleIntervals(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l, err := New(Config{
		Capacity: 2,
		Interval: time.Minute,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	require.True(t, l.TryConsume(""))
	require.True(t, l.TryConsume(""))

	now = now.Add(10 * time.Minute)
	assert.True(t, l.TryConsume(""))
	// Capacity tops out at the configured maximum regardless of idle time.
	assert.Equal(t, 1, l.Remaining(""))
}

func TestPerIdentityBucketsAreIndependent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l, err := New(Config{
		Capacity: 1,
		Interval: time.Minute,
		Scope:    ScopePerIdentity,
		Now:      func() time.Time { return now },
	})
	require.NoError(t, err)

	assert.True(t, l.TryConsume("alice@example.com"))
	assert.False(t, l.TryConsume("alice@example.com"))
	assert.True(t, l.TryConsume("bob@example.com"), "one exhausted identity must not starve another")
}

func TestTryConsumeConcurrent(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	l, err := New(Config{
		Capacity: 100,
		Interval: time.Minute,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
	})
	require.NoError(t, err)

	const callers = 64
	const perCaller = 4 // 256 attempts against capacity 100

	granted := make(chan struct{}, callers*perCaller)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				if l.TryConsume("") {
					granted <- struct{}{}
				}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 100, count, "exactly capacity grants under contention")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Capacity: 0, Interval: time.Minute})
	assert.Error(t, err)
	_, err = New(Config{Capacity: 5, Interval: 0})
	assert.Error(t, err)
}
