package monitor

import (
	"container/list"
	"sync"
)

// Cache is a bounded path -> content store with byte-size eviction. Eviction
// is strict LRU by access order; there is no entry-count cap, only a byte
// total ceiling (spec §4.1, §3 invariant 5).
type Cache struct {
	mu       sync.Mutex
	maxBytes int64
	bytes    int64
	order    *list.List // MRU at the front
	items    map[string]*list.Element
}

type cacheEntry struct {
	path    string
	content []byte
	device  uint64
	inode   uint64
}

// NewCache creates a cache bounded at maxBytes total content bytes.
func NewCache(maxBytes int64) *Cache {
	return &Cache{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached content for path and promotes it to MRU. The
// second return value is false when path is not cached.
func (c *Cache) Get(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[path]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	entry := el.Value.(*cacheEntry)
	return entry.content, true
}

// Set stores content for path along with its (device, inode) identity,
// evicting LRU entries until the total fits maxBytes. An oversize value
// (len(content) > maxBytes) is rejected silently: the caller proceeds with
// the file effectively unobserved.
func (c *Cache) Set(path string, content []byte, device, inode uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := int64(len(content))
	if size > c.maxBytes {
		return
	}

	if el, ok := c.items[path]; ok {
		entry := el.Value.(*cacheEntry)
		c.bytes -= int64(len(entry.content))
		entry.content = content
		entry.device = device
		entry.inode = inode
		c.bytes += size
		c.order.MoveToFront(el)
	} else {
		entry := &cacheEntry{path: path, content: content, device: device, inode: inode}
		el := c.order.PushFront(entry)
		c.items[path] = el
		c.bytes += size
	}

	for c.bytes > c.maxBytes {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.evict(back)
	}
}

// Identity returns the (device, inode) recorded for path's most recent Set
// call, used by rename inference to attribute a deletion even after the
// file itself is gone and can no longer be stat'd.
func (c *Cache) Identity(path string) (device, inode uint64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, present := c.items[path]
	if !present {
		return 0, 0, false
	}
	entry := el.Value.(*cacheEntry)
	return entry.device, entry.inode, true
}

// evict removes el from both the list and the map. Caller must hold mu.
func (c *Cache) evict(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.items, entry.path)
	c.bytes -= int64(len(entry.content))
}

// Remove drops path from the cache, if present.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[path]; ok {
		c.evict(el)
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = list.New()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Bytes returns the current total content byte count.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Keys returns a snapshot of every cached path, in no particular order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

// RetainOnly removes every cached entry whose path is not in keep.
func (c *Cache) RetainOnly(keep map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for path, el := range c.items {
		if _, ok := keep[path]; !ok {
			c.evict(el)
		}
	}
}
