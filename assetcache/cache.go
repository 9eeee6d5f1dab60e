// Package assetcache keeps parsed asset templates in memory and loads the
// ones that are missing.
package assetcache

import (
	"sync"

	"github.com/aukilabs/garth/models"
)

// node is an entry of the intrusive recency list (head=MRU, tail=LRU).
type node struct {
	key      models.AssetKey
	template *models.AssetTemplate

	prev *node
	next *node
}

// Options configures optional cache behavior. The zero value is valid.
type Options struct {
	// OnEvict is called under the cache lock when an entry falls off the
	// LRU end. Keep it lightweight.
	OnEvict func(models.AssetKey, *models.AssetTemplate)
}

// Cache is a fixed-capacity LRU cache of asset templates. Stored templates
// are never aliased out, Get returns a clone. It is safe for concurrent use.
type Cache struct {
	mutex    sync.Mutex
	entries  map[models.AssetKey]*node
	head     *node
	tail     *node
	capacity int
	opt      Options
}

// New returns a cache holding at most capacity templates. Capacities below
// one are raised to one.
func New(capacity int, options ...Options) *Cache {
	if capacity < 1 {
		capacity = 1
	}

	var opt Options
	if len(options) != 0 {
		opt = options[0]
	}

	return &Cache{
		entries:  make(map[models.AssetKey]*node, capacity),
		capacity: capacity,
		opt:      opt,
	}
}

// Get returns a clone of the cached template and promotes the entry to
// most recently used.
func (c *Cache) Get(key models.AssetKey) (*models.AssetTemplate, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n, ok := c.entries[key]
	if !ok {
		instrumentCacheMiss()
		return nil, false
	}

	c.moveToFront(n)
	instrumentCacheHit()
	return n.template.Clone(), true
}

// Put inserts or replaces the template under key and promotes it. When the
// cache is full the least recently used entry is evicted.
func (c *Cache) Put(key models.AssetKey, template *models.AssetTemplate) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, ok := c.entries[key]; ok {
		n.template = template
		c.moveToFront(n)
		return
	}

	n := &node{key: key, template: template}
	c.entries[key] = n
	c.insertFront(n)

	for len(c.entries) > c.capacity {
		c.evict(c.tail)
	}

	instrumentCacheEntries(len(c.entries))
}

// Has reports whether key is cached without touching recency.
func (c *Cache) Has(key models.AssetKey) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, ok := c.entries[key]
	return ok
}

// Clear drops every entry. OnEvict is not called.
func (c *Cache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[models.AssetKey]*node, c.capacity)
	c.head = nil
	c.tail = nil

	instrumentCacheEntries(0)
}

func (c *Cache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.entries)
}

func (c *Cache) Capacity() int {
	return c.capacity
}

// insertFront inserts n at MRU in O(1).
func (c *Cache) insertFront(n *node) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

// moveToFront promotes n to MRU in O(1).
func (c *Cache) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.removeNode(n)
	c.insertFront(n)
}

// removeNode detaches n from the list in O(1).
func (c *Cache) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if c.head == n {
		c.head = n.next
	}
	if c.tail == n {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Cache) evict(n *node) {
	if n == nil {
		return
	}

	c.removeNode(n)
	delete(c.entries, n.key)

	instrumentCacheEviction()

	if c.opt.OnEvict != nil {
		c.opt.OnEvict(n.key, n.template)
	}
}
