// Package metrics collects API, evaluation and cache statistics and exports
// them to Prometheus.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asakaida/permcondition/pkg/cache"
	"github.com/asakaida/permcondition/pkg/cache/memorycache"
)

// Collector collects and aggregates metrics in process.
type Collector struct {
	apiRequests sync.Map // method -> *uint64
	apiErrors   sync.Map // method -> *uint64
	apiDuration sync.Map // method -> *durationValue

	evaluationsAllowed uint64
	evaluationsDenied  uint64
	evaluationsCached  uint64

	cache cache.Cache // Optional
}

type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// CacheMetrics holds evaluation result cache metrics.
type CacheMetrics struct {
	Hits        uint64
	Misses      uint64
	HitRate     float64
	KeysCurrent int64
	MemoryBytes int64
	Evictions   uint64
}

// APIMetrics holds API request metrics.
type APIMetrics struct {
	RequestCounts        map[string]uint64
	ErrorCounts          map[string]uint64
	TotalDurationSeconds map[string]float64
}

// EvaluationMetrics holds visibility check outcomes.
type EvaluationMetrics struct {
	Allowed uint64
	Denied  uint64
	Cached  uint64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetCache sets the cache whose statistics are reported.
func (c *Collector) SetCache(cache cache.Cache) {
	c.cache = cache
}

// RecordRequest records an API request.
func (c *Collector) RecordRequest(method string) {
	atomic.AddUint64(c.counter(&c.apiRequests, method), 1)
}

// RecordError records an API error.
func (c *Collector) RecordError(method string) {
	atomic.AddUint64(c.counter(&c.apiErrors, method), 1)
}

// RecordDuration records the duration of an API call in seconds.
func (c *Collector) RecordDuration(method string, durationSeconds float64) {
	val, _ := c.apiDuration.LoadOrStore(method, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// RecordEvaluation records the outcome of a visibility check.
func (c *Collector) RecordEvaluation(allowed, cached bool, duration time.Duration) {
	if allowed {
		atomic.AddUint64(&c.evaluationsAllowed, 1)
	} else {
		atomic.AddUint64(&c.evaluationsDenied, 1)
	}
	if cached {
		atomic.AddUint64(&c.evaluationsCached, 1)
	}
}

// GetCacheMetrics returns current cache metrics.
func (c *Collector) GetCacheMetrics() *CacheMetrics {
	if c.cache == nil {
		return &CacheMetrics{}
	}

	m := c.cache.Metrics()
	if m == nil {
		return &CacheMetrics{}
	}

	result := &CacheMetrics{
		Hits:      m.Hits,
		Misses:    m.Misses,
		HitRate:   m.HitRate(),
		Evictions: m.KeysEvicted,
	}
	if mc, ok := c.cache.(*memorycache.Cache); ok {
		result.KeysCurrent = int64(mc.Len())
		result.MemoryBytes = mc.Size()
	}
	return result
}

// GetAPIMetrics returns current API metrics.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	result := &APIMetrics{
		RequestCounts:        make(map[string]uint64),
		ErrorCounts:          make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	c.apiRequests.Range(func(key, value interface{}) bool {
		result.RequestCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	c.apiErrors.Range(func(key, value interface{}) bool {
		result.ErrorCounts[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})
	c.apiDuration.Range(func(key, value interface{}) bool {
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[key.(string)] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// GetEvaluationMetrics returns visibility check counts.
func (c *Collector) GetEvaluationMetrics() *EvaluationMetrics {
	return &EvaluationMetrics{
		Allowed: atomic.LoadUint64(&c.evaluationsAllowed),
		Denied:  atomic.LoadUint64(&c.evaluationsDenied),
		Cached:  atomic.LoadUint64(&c.evaluationsCached),
	}
}

func (c *Collector) counter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}
