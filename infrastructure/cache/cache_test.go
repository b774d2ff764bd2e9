package cache

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(cfg Config) *Service {
	return NewService(cfg, zap.NewNop())
}

// fakeClock drives the cache's notion of time in tests.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time { return c.current }

func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func withFakeClock(svc *Service) *fakeClock {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.now
	return clock
}

func TestSetGetRoundtrip(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("projects:p1", map[string]any{"name": "A"}, time.Minute)
	got, ok := svc.Get("projects:p1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "A"}, got)
}

func TestDisabledCache(t *testing.T) {
	svc := newTestService(Config{Enabled: false, DefaultTTL: time.Minute})

	svc.Set("k", "v", 0)
	_, ok := svc.Get("k")
	assert.False(t, ok)

	// A disabled cache never touches counters.
	stats := svc.GetStats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.Entries)
}

func TestSetNilValueIsNoop(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("k", nil, 0)
	assert.Zero(t, svc.GetStats().Entries)
}

func TestTTLExpiry(t *testing.T) {
	svc := newTestService(Config{Enabled: true, DefaultTTL: 10 * time.Second})
	clock := withFakeClock(svc)

	svc.Set("k", "v", 0)
	clock.advance(11 * time.Second)

	_, ok := svc.Get("k")
	assert.False(t, ok)

	stats := svc.GetStats()
	assert.EqualValues(t, 1, stats.Evictions)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Zero(t, stats.Entries)
}

func TestGetUpdatesRecencyAndFrequency(t *testing.T) {
	svc := newTestService(DefaultConfig())
	clock := withFakeClock(svc)

	svc.Set("k", "v", time.Hour)
	clock.advance(time.Second)
	_, ok := svc.Get("k")
	require.True(t, ok)

	e := svc.entries["k"]
	assert.EqualValues(t, 1, e.accessCount)
	assert.Equal(t, clock.current, e.lastAccessed)
}

func TestMaxEntriesEviction(t *testing.T) {
	svc := newTestService(Config{Enabled: true, DefaultTTL: time.Hour, MaxEntries: 3})
	clock := withFakeClock(svc)

	svc.Set("a", "1", 0)
	clock.advance(time.Millisecond)
	svc.Set("b", "2", 0)
	clock.advance(time.Millisecond)
	svc.Set("c", "3", 0)

	// Touch a and b so c has the lowest value score.
	for i := 0; i < 3; i++ {
		svc.Get("a")
		svc.Get("b")
	}

	clock.advance(time.Millisecond)
	svc.Set("d", "4", 0)

	stats := svc.GetStats()
	assert.Equal(t, 3, stats.Entries)
	assert.EqualValues(t, 1, stats.Evictions)

	_, ok := svc.Get("c")
	assert.False(t, ok, "lowest-score entry should have been evicted")
	_, ok = svc.Get("a")
	assert.True(t, ok)
	_, ok = svc.Get("d")
	assert.True(t, ok)
}

func TestMaxEntriesNeverExceeded(t *testing.T) {
	const maxEntries = 5
	svc := newTestService(Config{Enabled: true, DefaultTTL: time.Hour, MaxEntries: maxEntries})

	for i := 0; i < maxEntries+10; i++ {
		svc.Set(fmt.Sprintf("key-%d", i), i, 0)
		assert.LessOrEqual(t, svc.GetStats().Entries, maxEntries)
	}
}

func TestMaxSizeEviction(t *testing.T) {
	value := "0123456789" // JSON-encodes to 12 bytes, size heuristic 24
	svc := newTestService(Config{Enabled: true, DefaultTTL: time.Hour, MaxSizeBytes: 100})

	for i := 0; i < 10; i++ {
		svc.Set(fmt.Sprintf("key-%d", i), value, 0)
		assert.LessOrEqual(t, svc.GetStats().SizeBytes, int64(100))
	}
	assert.Positive(t, svc.GetStats().Evictions)
}

func TestSizeInvariantUnderRandomOperations(t *testing.T) {
	svc := newTestService(Config{Enabled: true, DefaultTTL: time.Hour, MaxEntries: 20, MaxSizeBytes: 4096})
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		key := fmt.Sprintf("key-%d", rng.Intn(40))
		switch rng.Intn(4) {
		case 0, 1:
			svc.Set(key, map[string]any{"n": rng.Intn(1000), "pad": "xxxxxxxxxx"}, 0)
		case 2:
			svc.Get(key)
		case 3:
			svc.Delete(key)
		}

		var sum int64
		svc.mu.Lock()
		for _, e := range svc.entries {
			sum += e.size
		}
		current := svc.currentSize
		svc.mu.Unlock()
		require.Equal(t, sum, current, "running size must equal sum of entry sizes")
	}
}

func TestOverwriteAdjustsSize(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("k", "short", 0)
	first := svc.GetStats().SizeBytes
	svc.Set("k", "a considerably longer value than before", 0)
	second := svc.GetStats().SizeBytes

	assert.Equal(t, 1, svc.GetStats().Entries)
	assert.Greater(t, second, first)
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("k", "v", 0)
	svc.Delete("k")
	svc.Delete("k")
	assert.Zero(t, svc.GetStats().Entries)
	assert.Zero(t, svc.GetStats().SizeBytes)
}

func TestInvalidateCollection(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("projects:p1", "a", 0)
	svc.Set("projects:p2", "b", 0)
	svc.Set("query:projects:{\"limit\":100}", "c", 0)
	svc.Set("users:u1", "d", 0)
	svc.Set("query:users:{\"limit\":100}", "e", 0)

	removed := svc.InvalidateCollection("projects")
	assert.Equal(t, 3, removed)

	_, ok := svc.Get("users:u1")
	assert.True(t, ok)
	_, ok = svc.Get("query:users:{\"limit\":100}")
	assert.True(t, ok)
	_, ok = svc.Get("projects:p1")
	assert.False(t, ok)
}

func TestInvalidatePatternRejectsBadRegex(t *testing.T) {
	svc := newTestService(DefaultConfig())

	_, err := svc.InvalidatePattern("([")
	assert.Error(t, err)
}

func TestHitRatio(t *testing.T) {
	svc := newTestService(DefaultConfig())

	assert.Zero(t, svc.GetStats().HitRatio, "no requests yet")

	svc.Set("k", "v", 0)
	svc.Get("k")
	svc.Get("k")
	svc.Get("absent")

	stats := svc.GetStats()
	assert.EqualValues(t, 2, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRatio, 1e-9)
}

func TestClearKeepsLifetimeCounters(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("k", "v", 0)
	svc.Get("k")
	svc.Get("absent")
	svc.Clear()

	stats := svc.GetStats()
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.SizeBytes)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestResetStats(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("k", "v", 0)
	svc.Get("k")
	svc.ResetStats()

	stats := svc.GetStats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Equal(t, 1, stats.Entries, "entries survive a stats reset")
}

func TestInitializeDisabledClearsEntries(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Set("k", "v", 0)
	svc.Initialize(Config{Enabled: false})

	stats := svc.GetStats()
	assert.Zero(t, stats.Entries)
	assert.Zero(t, stats.SizeBytes)
}

func TestCleanExpired(t *testing.T) {
	svc := newTestService(Config{Enabled: true, DefaultTTL: time.Minute})
	clock := withFakeClock(svc)

	svc.Set("short", "v", time.Second)
	svc.Set("long", "v", time.Hour)
	clock.advance(2 * time.Second)

	removed := svc.CleanExpired()
	assert.Equal(t, 1, removed)
	assert.EqualValues(t, 1, svc.GetStats().Evictions)

	_, ok := svc.Get("long")
	assert.True(t, ok)
}

func TestPreload(t *testing.T) {
	svc := newTestService(DefaultConfig())

	svc.Preload(func() (map[string]any, error) {
		return map[string]any{"a": 1, "b": 2}, nil
	})
	assert.Equal(t, 2, svc.GetStats().Entries)

	t.Run("loader failure leaves cache unaffected", func(t *testing.T) {
		svc.Preload(func() (map[string]any, error) {
			return nil, fmt.Errorf("loader broke")
		})
		assert.Equal(t, 2, svc.GetStats().Entries)
	})
}

func TestEmptyStoreNeverLoopsOnCapacity(t *testing.T) {
	// A single oversized value can never fit; insertion must still
	// terminate and admit the entry.
	svc := newTestService(Config{Enabled: true, DefaultTTL: time.Minute, MaxSizeBytes: 4})

	done := make(chan struct{})
	go func() {
		svc.Set("huge", "a value far beyond the size bound", 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ensureCapacity looped on an empty store")
	}
}
