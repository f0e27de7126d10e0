package thumb

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxThumbs caps the in-memory tier
	DefaultMaxThumbs = 64

	// ThumbTTL bounds how long a cached rendering is served
	ThumbTTL = 10 * time.Minute

	// DiskTTL is how long disk-tier files survive across restarts
	DiskTTL = time.Hour
)

// Cache stores rendered overview PNGs keyed by grid version and output
// size, with LRU eviction in memory and an optional disk tier that
// survives restarts. A stale grid version never hits: the key changes
// with every placement, so old entries just age out.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cachedThumb
	order   []string // LRU order (oldest first)
	maxSize int

	dir string // disk tier root, empty disables
}

// cachedThumb holds an encoded PNG and metadata
type cachedThumb struct {
	PNG        []byte
	RenderedAt time.Time
}

// NewCache creates a thumbnail cache. dir enables the disk tier;
// stale files from previous runs are pruned on startup.
func NewCache(maxSize int, dir string) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxThumbs
	}
	c := &Cache{
		entries: make(map[string]*cachedThumb),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("⚠️ Thumbnail disk cache disabled: %v", err)
		} else {
			c.dir = dir
			c.pruneDisk()
		}
	}

	return c
}

// key builds the cache key for one rendering
func key(gridVersion uint64, width, height int) string {
	return fmt.Sprintf("v%d_%dx%d", gridVersion, width, height)
}

// Get returns a cached PNG or nil. Disk hits are promoted into memory.
func (c *Cache) Get(gridVersion uint64, width, height int) []byte {
	k := key(gridVersion, width, height)

	c.mu.RLock()
	cached, exists := c.entries[k]
	c.mu.RUnlock()

	if exists {
		if time.Since(cached.RenderedAt) > ThumbTTL {
			c.mu.Lock()
			delete(c.entries, k)
			c.mu.Unlock()
			return nil
		}
		return cached.PNG
	}

	if c.dir == "" {
		return nil
	}

	png, err := os.ReadFile(c.diskPath(k))
	if err != nil {
		return nil
	}
	c.store(k, png)
	return png
}

// Put caches an encoded PNG in both tiers
func (c *Cache) Put(gridVersion uint64, width, height int, png []byte) {
	if len(png) == 0 {
		return
	}
	k := key(gridVersion, width, height)
	c.store(k, png)

	if c.dir != "" {
		if err := os.WriteFile(c.diskPath(k), png, 0644); err != nil {
			log.Printf("⚠️ Thumbnail disk write failed for %s: %v", k, err)
		}
	}
}

// store inserts into the memory tier, evicting at capacity
func (c *Cache) store(k string, png []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[k]; !exists {
		if len(c.entries) >= c.maxSize {
			c.evict()
		}
		c.order = append(c.order, k)
	}
	c.entries[k] = &cachedThumb{
		PNG:        png,
		RenderedAt: time.Now(),
	}
}

// evict removes the oldest cached thumbnail
func (c *Cache) evict() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

// Size returns the current memory tier size
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// diskPath maps a cache key to its file
func (c *Cache) diskPath(k string) string {
	return filepath.Join(c.dir, k+".png")
}

// pruneDisk removes expired files left by previous runs
func (c *Cache) pruneDisk() {
	items, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-DiskTTL)
	pruned := 0
	for _, item := range items {
		if item.IsDir() || !strings.HasSuffix(item.Name(), ".png") {
			continue
		}
		info, err := item.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(c.dir, item.Name())) == nil {
				pruned++
			}
		}
	}
	if pruned > 0 {
		log.Printf("🗑️ Pruned %d stale thumbnails from %s", pruned, c.dir)
	}
}
