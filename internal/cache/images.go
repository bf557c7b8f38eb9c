package cache

import "sync"

// ImageCache is a process-wide in-memory store of avatar images keyed by
// author id. It memoizes for the session lifetime: no expiry, no size bound.
// Eviction under memory pressure is a documented limitation, not handled
// here. Safe for concurrent use from any goroutine.
type ImageCache struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewImageCache creates an empty image cache
func NewImageCache() *ImageCache {
	return &ImageCache{m: make(map[string][]byte)}
}

// Insert stores or overwrites the image for a key
func (c *ImageCache) Insert(key string, img []byte) {
	c.mu.Lock()
	c.m[key] = img
	c.mu.Unlock()
}

// Value returns the cached image for a key
func (c *ImageCache) Value(key string) ([]byte, bool) {
	c.mu.RLock()
	img, ok := c.m[key]
	c.mu.RUnlock()
	return img, ok
}

// Len returns the number of cached images
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
