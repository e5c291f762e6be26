package polling

import "sync"

// Cache remembers the latest tag seen for each polled image. Images are
// polled concurrently, so reads take the shared lock and only a change
// takes the exclusive one.
type Cache struct {
	mu   sync.RWMutex
	tags map[string]string
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{tags: make(map[string]string)}
}

// Get returns the cached tag of image.
func (c *Cache) Get(image string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tag, ok := c.tags[image]
	return tag, ok
}

// Observe records tag as the latest tag of image. It reports true when the
// entry was absent or held a different tag, which is exactly when an event
// should be emitted.
func (c *Cache) Observe(image, tag string) bool {
	c.mu.RLock()
	prev, ok := c.tags[image]
	c.mu.RUnlock()
	if ok && prev == tag {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have stored the same tag in between.
	if prev, ok := c.tags[image]; ok && prev == tag {
		return false
	}
	c.tags[image] = tag
	return true
}

// Forget drops the entry of image so that the next observation emits again.
func (c *Cache) Forget(image string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tags, image)
}

// Retain drops every entry for which keep returns false.
func (c *Cache) Retain(keep func(image string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for image := range c.tags {
		if !keep(image) {
			delete(c.tags, image)
		}
	}
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tags)
}
