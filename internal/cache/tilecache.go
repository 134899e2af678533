// Package cache provides a two-tier tile cache: a bounded in-memory LRU in
// front of a size-limited disk store that persists across restarts.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TileCache caches tile images by key. Hot tiles are served from memory;
// everything written survives on disk until evicted by size or TTL.
type TileCache struct {
	baseDir string
	maxSize int64 // Maximum disk size in bytes
	ttl     time.Duration

	memory *lru.Cache[string, []byte]

	currSize  int64 // Current disk size (atomic)
	mu        sync.RWMutex
	index     map[string]*diskEntry
	evictChan chan struct{}

	hits   uint64
	misses uint64
}

type diskEntry struct {
	filePath   string
	size       int64
	accessTime time.Time
	createTime time.Time
}

// NewTileCache creates a tile cache rooted at baseDir. memoryTiles bounds the
// in-memory tier by entry count; maxSizeMB bounds the disk tier; ttlDays of 0
// disables expiry.
func NewTileCache(baseDir string, memoryTiles, maxSizeMB, ttlDays int) (*TileCache, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	memory, err := lru.New[string, []byte](memoryTiles)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	c := &TileCache{
		baseDir:   baseDir,
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		ttl:       time.Duration(ttlDays) * 24 * time.Hour,
		memory:    memory,
		index:     make(map[string]*diskEntry),
		evictChan: make(chan struct{}, 1),
	}

	if err := c.loadIndex(); err != nil {
		return nil, fmt.Errorf("failed to load cache index: %w", err)
	}

	go c.evictionWorker()

	return c, nil
}

// TileKey builds a cache key from a layer name and tile coordinate.
func TileKey(layer string, col, row, level int) string {
	return fmt.Sprintf("%s:%d:%d:%d", layer, level, col, row)
}

// Get retrieves a tile, checking memory first and falling back to disk.
func (c *TileCache) Get(key string) ([]byte, bool) {
	if data, ok := c.memory.Get(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return data, true
	}

	c.mu.RLock()
	entry, exists := c.index[key]
	c.mu.RUnlock()

	if !exists {
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.createTime) > c.ttl {
		c.removeEntry(key, entry)
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	data, err := os.ReadFile(entry.filePath)
	if err != nil {
		// File missing or unreadable, drop the index entry.
		c.removeEntry(key, entry)
		atomic.AddUint64(&c.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	entry.accessTime = time.Now()
	c.mu.Unlock()

	c.memory.Add(key, data)
	atomic.AddUint64(&c.hits, 1)
	return data, true
}

// Set stores a tile in both tiers.
func (c *TileCache) Set(key string, data []byte) error {
	c.memory.Add(key, data)

	size := int64(len(data))

	// File path from key hash to avoid filesystem limits on key characters.
	hash := sha256.Sum256([]byte(key))
	hashStr := hex.EncodeToString(hash[:])
	filePath := filepath.Join(c.baseDir, hashStr[:2], hashStr+".bin")

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create cache subdirectory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	entry := &diskEntry{
		filePath:   filePath,
		size:       size,
		accessTime: now,
		createTime: now,
	}

	c.mu.Lock()
	if old, exists := c.index[key]; exists {
		atomic.AddInt64(&c.currSize, -old.size)
	}
	// A pre-restart entry for this tile is keyed by its hash (loadIndex
	// cannot recover real keys); drop it so the file is not counted twice
	// and cannot be evicted out from under the new entry.
	if old, exists := c.index[hashStr]; exists && old.filePath == filePath {
		delete(c.index, hashStr)
		atomic.AddInt64(&c.currSize, -old.size)
	}
	c.index[key] = entry
	c.mu.Unlock()

	atomic.AddInt64(&c.currSize, size)

	if atomic.LoadInt64(&c.currSize) > c.maxSize {
		select {
		case c.evictChan <- struct{}{}:
		default: // Already signaled
		}
	}

	return nil
}

func (c *TileCache) removeEntry(key string, entry *diskEntry) {
	c.memory.Remove(key)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.index[key]; !exists {
		return
	}
	os.Remove(entry.filePath)
	delete(c.index, key)
	atomic.AddInt64(&c.currSize, -entry.size)
}

// evictionWorker evicts cold disk entries when the cache is over its limit.
func (c *TileCache) evictionWorker() {
	for range c.evictChan {
		c.evict()
	}
}

// evict removes least recently used disk entries until under the limit.
func (c *TileCache) evict() {
	c.mu.Lock()
	defer c.mu.Unlock()

	currSize := atomic.LoadInt64(&c.currSize)
	if currSize <= c.maxSize {
		return
	}

	// Target 90% of max to avoid thrashing around the limit.
	targetSize := c.maxSize * 9 / 10

	type sortEntry struct {
		key        string
		accessTime time.Time
		size       int64
	}

	entries := make([]sortEntry, 0, len(c.index))
	for key, entry := range c.index {
		entries = append(entries, sortEntry{
			key:        key,
			accessTime: entry.accessTime,
			size:       entry.size,
		})
	}

	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].accessTime.After(entries[j].accessTime) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}

	for _, e := range entries {
		if currSize <= targetSize {
			break
		}

		entry := c.index[e.key]
		os.Remove(entry.filePath)
		delete(c.index, e.key)
		c.memory.Remove(e.key)
		atomic.AddInt64(&c.currSize, -entry.size)
		currSize -= entry.size
	}
}

// loadIndex scans the cache directory and rebuilds the disk index. Keys are
// not recoverable from hashed filenames, so prior entries are reachable only
// after being rewritten; their size still counts toward the limit.
func (c *TileCache) loadIndex() error {
	return filepath.Walk(c.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors, continue walking
		}
		if info.IsDir() || filepath.Ext(path) != ".bin" {
			return nil
		}

		hashStr := filepath.Base(path)
		hashStr = hashStr[:len(hashStr)-len(".bin")]

		c.index[hashStr] = &diskEntry{
			filePath:   path,
			size:       info.Size(),
			accessTime: info.ModTime(),
			createTime: info.ModTime(),
		}
		atomic.AddInt64(&c.currSize, info.Size())

		return nil
	})
}

// Stats reports cache occupancy and hit counters.
func (c *TileCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.index)
	c.mu.RUnlock()

	return CacheStats{
		MemoryEntries: c.memory.Len(),
		DiskEntries:   entries,
		DiskBytes:     atomic.LoadInt64(&c.currSize),
		MaxDiskBytes:  c.maxSize,
		Hits:          atomic.LoadUint64(&c.hits),
		Misses:        atomic.LoadUint64(&c.misses),
	}
}

// CacheStats describes the state of both cache tiers.
type CacheStats struct {
	MemoryEntries int    `json:"memoryEntries"`
	DiskEntries   int    `json:"diskEntries"`
	DiskBytes     int64  `json:"diskBytes"`
	MaxDiskBytes  int64  `json:"maxDiskBytes"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
}

// Clear removes all cached tiles from both tiers.
func (c *TileCache) Clear() error {
	c.memory.Purge()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.index {
		os.Remove(entry.filePath)
	}
	c.index = make(map[string]*diskEntry)
	atomic.StoreInt64(&c.currSize, 0)

	return nil
}
