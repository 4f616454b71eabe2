// Package framecache memoizes rendered character-art frames by frame index
// with least-recently-used eviction.
package framecache

import "container/list"

type entry struct {
	index int
	frame string
}

// Cache is a bounded LRU store of rendered frames. Both Get and Put count as
// an access. A Cache is owned by a single goroutine and does no locking.
type Cache struct {
	capacity int
	order    *list.List // front = most recently used
	items    map[int]*list.Element
}

// New creates a cache holding at most capacity frames. A capacity of 0 (or
// less) disables caching: Put becomes a no-op and Get always misses.
func New(capacity int) *Cache {
	capacity = max(capacity, 0)
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[int]*list.Element, capacity),
	}
}

// Get returns the frame stored for index and marks it most recently used.
func (c *Cache) Get(index int) (string, bool) {
	el, ok := c.items[index]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).frame, true
}

// Put stores frame under index. Re-putting a present index replaces its
// value in place; a new index at capacity evicts the least recently used one.
func (c *Cache) Put(index int, frame string) {
	if c.capacity == 0 {
		return
	}

	if el, ok := c.items[index]; ok {
		el.Value.(*entry).frame = frame
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).index)
	}

	c.items[index] = c.order.PushFront(&entry{index: index, frame: frame})
}

// Clear drops every entry. Called whenever rendering parameters change,
// since a frame is only valid for the parameters it was rendered with.
func (c *Cache) Clear() {
	c.order.Init()
	clear(c.items)
}

// Len returns the number of cached frames.
func (c *Cache) Len() int {
	return c.order.Len()
}

// Cap returns the configured capacity.
func (c *Cache) Cap() int {
	return c.capacity
}
