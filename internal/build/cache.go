package build

import (
	"sync"
	"sync/atomic"
	"time"
)

// BuildCache caches instrumented programs by content hash with LRU eviction
// and an optional TTL.
type BuildCache struct {
	entries     map[string]*CacheEntry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	// LRU list with sentinel head and tail
	head *CacheEntry
	tail *CacheEntry

	hits      int64
	misses    int64
	evictions int64
}

// CacheEntry represents a cached program
type CacheEntry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	Size      int64

	prev *CacheEntry
	next *CacheEntry
}

// CacheStats is a point in time view of the cache.
type CacheStats struct {
	Entries   int
	Size      int64
	MaxSize   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// NewBuildCache creates a cache holding at most maxSize bytes of values. A
// zero ttl keeps entries until they are evicted.
func NewBuildCache(maxSize int64, ttl time.Duration) *BuildCache {
	cache := &BuildCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		head:    &CacheEntry{},
		tail:    &CacheEntry{},
	}
	cache.head.next = cache.tail
	cache.tail.prev = cache.head
	return cache
}

// Get retrieves a value from the cache
func (bc *BuildCache) Get(key string) ([]byte, bool) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	entry, exists := bc.entries[key]
	if !exists {
		atomic.AddInt64(&bc.misses, 1)
		return nil, false
	}

	if bc.ttl > 0 && time.Since(entry.CreatedAt) > bc.ttl {
		bc.remove(entry)
		atomic.AddInt64(&bc.misses, 1)
		return nil, false
	}

	bc.moveToFront(entry)
	atomic.AddInt64(&bc.hits, 1)
	return entry.Value, true
}

// Set stores a value. Values larger than the whole cache are not stored.
func (bc *BuildCache) Set(key string, value []byte) {
	size := int64(len(value))
	if size > bc.maxSize {
		return
	}

	bc.mutex.Lock()
	defer bc.mutex.Unlock()

	if existing, exists := bc.entries[key]; exists {
		bc.remove(existing)
	}

	for bc.currentSize+size > bc.maxSize && bc.tail.prev != bc.head {
		bc.remove(bc.tail.prev)
		atomic.AddInt64(&bc.evictions, 1)
	}

	entry := &CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Now(),
		Size:      size,
	}
	bc.entries[key] = entry
	bc.currentSize += size
	bc.addToFront(entry)
}

// Delete drops a key if present.
func (bc *BuildCache) Delete(key string) {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	if entry, exists := bc.entries[key]; exists {
		bc.remove(entry)
	}
}

// Clear clears all cache entries
func (bc *BuildCache) Clear() {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	bc.entries = make(map[string]*CacheEntry)
	bc.currentSize = 0
	bc.head.next = bc.tail
	bc.tail.prev = bc.head
}

// Stats returns cache statistics
func (bc *BuildCache) Stats() CacheStats {
	bc.mutex.Lock()
	defer bc.mutex.Unlock()
	return CacheStats{
		Entries:   len(bc.entries),
		Size:      bc.currentSize,
		MaxSize:   bc.maxSize,
		Hits:      atomic.LoadInt64(&bc.hits),
		Misses:    atomic.LoadInt64(&bc.misses),
		Evictions: atomic.LoadInt64(&bc.evictions),
	}
}

func (bc *BuildCache) remove(entry *CacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(bc.entries, entry.Key)
	bc.currentSize -= entry.Size
}

func (bc *BuildCache) addToFront(entry *CacheEntry) {
	entry.prev = bc.head
	entry.next = bc.head.next
	bc.head.next.prev = entry
	bc.head.next = entry
}

func (bc *BuildCache) moveToFront(entry *CacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	bc.addToFront(entry)
}
