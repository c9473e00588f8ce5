package dataloader

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
)

// cachedItem is one preprocessed sample
type cachedItem struct {
	data  []float32
	label int32
	video string
}

// CacheManager is an LRU cache of preprocessed samples keyed by dataset index.
// It is only used for datasets whose samples never change between reads.
type CacheManager struct {
	mu      sync.Mutex
	lru     *lru.Cache
	maxSize int

	hits   int64
	misses int64
}

// NewCacheManager creates a cache holding at most maxSize samples. A maxSize of
// zero or less stores nothing.
func NewCacheManager(maxSize int) *CacheManager {
	return &CacheManager{
		lru:     lru.New(maxSize),
		maxSize: maxSize,
	}
}

// get retrieves the sample stored for index
func (cm *CacheManager) get(index int) (cachedItem, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if v, ok := cm.lru.Get(index); ok {
		cm.hits++
		return v.(cachedItem), true
	}
	cm.misses++
	return cachedItem{}, false
}

// put stores the sample for index, evicting the least recently used entries
func (cm *CacheManager) put(index int, item cachedItem) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	// lru treats zero entries as unbounded
	if cm.maxSize <= 0 {
		return
	}
	cm.lru.Add(index, item)
}

// Clear empties the cache. Statistics are kept.
func (cm *CacheManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.lru.Clear()
}

// Stats returns cache statistics
func (cm *CacheManager) Stats() CacheStats {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	stats := CacheStats{
		Size:    cm.lru.Len(),
		MaxSize: cm.maxSize,
		Hits:    cm.hits,
		Misses:  cm.misses,
	}
	if total := cm.hits + cm.misses; total > 0 {
		stats.HitRate = float64(cm.hits) / float64(total) * 100
	}
	return stats
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
