// Package memorycache is an in-process LRU cache with per-entry expiry.
package memorycache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/asakaida/permcondition/pkg/cache"
)

// entryOverhead approximates the bookkeeping cost of one entry in bytes.
const entryOverhead = 100

// entry is one cached value with its expiry and accounted size
type entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
	size      int64 // Approximate bytes, including entryOverhead
}

// Cache implements cache.Cache as a size-bounded LRU.
// Entries also expire individually; expired entries are dropped on lookup.
type Cache struct {
	mu sync.Mutex

	// LRU bookkeeping
	items     map[string]*list.Element // key -> element holding *entry
	evictList *list.List               // front = most recently used

	// Limits
	maxSize int64         // Upper bound for currentSize in bytes
	ttl     time.Duration // Used when Set is called with a zero ttl

	currentSize int64 // Sum of entry sizes

	metrics *cache.Metrics   // Nil when metrics are disabled
	now     func() time.Time // Replaced in tests
}

var _ cache.Cache = (*Cache)(nil)

// Config holds configuration for the memory cache.
type Config struct {
	// MaxSizeBytes bounds the approximate total size of cached entries.
	// When the bound is exceeded, least recently used entries are evicted.
	MaxSizeBytes int64

	// DefaultTTL applies when Set is called with a zero ttl.
	DefaultTTL time.Duration

	// EnableMetrics turns on hit, miss and eviction counting.
	EnableMetrics bool
}

// New creates a new memory cache with the given configuration.
// MaxSizeBytes and DefaultTTL must both be positive.
func New(config *Config) (*Cache, error) {
	if config == nil {
		return nil, errors.New("memorycache: config is required")
	}
	if config.MaxSizeBytes <= 0 {
		return nil, errors.New("memorycache: MaxSizeBytes must be positive")
	}
	if config.DefaultTTL <= 0 {
		return nil, errors.New("memorycache: DefaultTTL must be positive")
	}

	c := &Cache{
		items:     make(map[string]*list.Element),
		evictList: list.New(),
		maxSize:   config.MaxSizeBytes,
		ttl:       config.DefaultTTL,
		now:       time.Now,
	}
	if config.EnableMetrics {
		c.metrics = &cache.Metrics{}
	}
	return c, nil
}

// Get returns a live entry and marks it as most recently used.
func (c *Cache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.miss()
		return nil, false
	}

	ent := elem.Value.(*entry)
	if c.now().After(ent.expiresAt) {
		c.removeElement(elem)
		c.miss()
		return nil, false
	}

	c.evictList.MoveToFront(elem)
	if c.metrics != nil {
		c.metrics.Hits++
	}
	return ent.value, true
}

// Set stores value and evicts least recently used entries while over capacity.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	size := estimateSize(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if elem, ok := c.items[key]; ok {
		ent := elem.Value.(*entry)
		c.currentSize += size - ent.size
		ent.value = value
		ent.expiresAt = expiresAt
		ent.size = size
		c.evictList.MoveToFront(elem)
	} else {
		elem := c.evictList.PushFront(&entry{key: key, value: value, expiresAt: expiresAt, size: size})
		c.items[key] = elem
		c.currentSize += size
		if c.metrics != nil {
			c.metrics.KeysAdded++
			c.metrics.CostAdded += uint64(size)
		}
	}

	for c.currentSize > c.maxSize && c.evictList.Len() > 0 {
		oldest := c.evictList.Back()
		ent := oldest.Value.(*entry)
		c.removeElement(oldest)
		if c.metrics != nil {
			c.metrics.KeysEvicted++
			c.metrics.CostEvicted += uint64(ent.size)
		}
	}

	return nil
}

// Delete removes a value from cache.
func (c *Cache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
	return nil
}

// Clear removes all entries from cache.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
	c.currentSize = 0
	return nil
}

// Close is a no-op; the cache holds no external resources.
func (c *Cache) Close() error {
	return nil
}

// Metrics returns a snapshot of the statistics; all zero when disabled.
func (c *Cache) Metrics() *cache.Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.metrics == nil {
		return &cache.Metrics{}
	}
	snapshot := *c.metrics
	return &snapshot
}

// Len returns the current number of items in cache.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Size returns the current approximate size in bytes.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentSize
}

// miss counts a failed lookup. The lock must be held.
func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.Misses++
	}
}

// removeElement unlinks elem and releases its size. The lock must be held.
func (c *Cache) removeElement(elem *list.Element) {
	c.evictList.Remove(elem)
	ent := elem.Value.(*entry)
	delete(c.items, ent.key)
	c.currentSize -= ent.size
}

// estimateSize approximates the memory held by an entry. Values that are not
// strings, byte slices or Sizers count only the fixed overhead.
func estimateSize(key string, value interface{}) int64 {
	size := int64(entryOverhead + len(key))
	switch v := value.(type) {
	case cache.Sizer:
		size += v.Size()
	case string:
		size += int64(len(v))
	case []byte:
		size += int64(len(v))
	}
	return size
}
