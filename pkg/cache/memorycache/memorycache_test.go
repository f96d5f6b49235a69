package memorycache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sized int64

func (s sized) Size() int64 { return int64(s) }

func newTestCache(t *testing.T, maxSize int64) *Cache {
	t.Helper()
	c, err := New(&Config{MaxSizeBytes: maxSize, DefaultTTL: time.Minute, EnableMetrics: true})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "異常系: nil", cfg: nil},
		{name: "異常系: サイズ0", cfg: &Config{MaxSizeBytes: 0, DefaultTTL: time.Minute}},
		{name: "異常系: TTL0", cfg: &Config{MaxSizeBytes: 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t, 1024*1024)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", true, time.Minute))

	value, found := c.Get(ctx, "key1")
	assert.True(t, found)
	assert.Equal(t, true, value)

	_, found = c.Get(ctx, "nonexistent")
	assert.False(t, found)

	m := c.Metrics()
	assert.Equal(t, uint64(1), m.Hits)
	assert.Equal(t, uint64(1), m.Misses)
	assert.Equal(t, uint64(1), m.KeysAdded)
	assert.InDelta(t, 0.5, m.HitRate(), 0.0001)
}

func TestCache_TTLExpiration(t *testing.T) {
	c := newTestCache(t, 1024*1024)
	ctx := context.Background()

	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", "v", 50*time.Millisecond))
	require.NoError(t, c.Set(ctx, "default", "v", 0))

	_, found := c.Get(ctx, "short")
	assert.True(t, found)

	now = now.Add(100 * time.Millisecond)
	_, found = c.Get(ctx, "short")
	assert.False(t, found, "expired entry is removed")
	assert.Equal(t, 1, c.Len())

	_, found = c.Get(ctx, "default")
	assert.True(t, found, "zero ttl falls back to the default")

	now = now.Add(2 * time.Minute)
	_, found = c.Get(ctx, "default")
	assert.False(t, found)
}

func TestCache_LRUEviction(t *testing.T) {
	// Room for two 101-byte entries
	c := newTestCache(t, 202)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))

	// Touch "a" so "b" becomes least recently used
	_, found := c.Get(ctx, "a")
	require.True(t, found)

	require.NoError(t, c.Set(ctx, "c", 3, 0))

	_, found = c.Get(ctx, "b")
	assert.False(t, found, "least recently used entry is evicted")
	_, found = c.Get(ctx, "a")
	assert.True(t, found)
	_, found = c.Get(ctx, "c")
	assert.True(t, found)

	m := c.Metrics()
	assert.Equal(t, uint64(1), m.KeysEvicted)
	assert.Equal(t, uint64(101), m.CostEvicted)
}

func TestCache_SizerValues(t *testing.T) {
	c := newTestCache(t, 1024)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sized(400), 0))
	assert.Equal(t, int64(entryOverhead+1+400), c.Size())

	// Overwrite adjusts the size instead of adding
	require.NoError(t, c.Set(ctx, "k", sized(100), 0))
	assert.Equal(t, int64(entryOverhead+1+100), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := newTestCache(t, 1024*1024)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "key1", "value1", 0))
	require.NoError(t, c.Set(ctx, "key2", "value2", 0))

	require.NoError(t, c.Delete(ctx, "key1"))
	_, found := c.Get(ctx, "key1")
	assert.False(t, found)

	assert.NoError(t, c.Delete(ctx, "nonexistent"))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())
	assert.NoError(t, c.Close())
}

func TestCache_MetricsDisabled(t *testing.T) {
	c, err := New(&Config{MaxSizeBytes: 1024, DefaultTTL: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	c.Set(ctx, "k", "v", 0)
	c.Get(ctx, "k")

	assert.Equal(t, uint64(0), c.Metrics().Hits)
}

func TestCache_Concurrent(t *testing.T) {
	c := newTestCache(t, 1024*1024)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d-%d", n, j%10)
				c.Set(ctx, key, j, 0)
				c.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 80, c.Len())
}
