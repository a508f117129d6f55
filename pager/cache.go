package pager

import "container/list"

// Cache wraps a Pager with a bounded, write-through LRU of raw page
// bytes. The pager's own read/write contract (single seek-then-I/O, no
// caching) is unchanged underneath; Cache only avoids repeat disk reads for
// pages that were recently touched. Modeled on the buffer-pool pattern of
// tracking a fixed pool of frames in a page-id map with an LRU eviction
// list, simplified here because the engine above it is single-threaded and
// never pins a page across calls.
type Cache struct {
	pager    *Pager
	capacity int
	entries  map[int32]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	page int32
	data []byte
}

// NewCache wraps pgr with an LRU of at most capacity pages.
func NewCache(pgr *Pager, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		pager:    pgr,
		capacity: capacity,
		entries:  make(map[int32]*list.Element, capacity),
		order:    list.New(),
	}
}

// Read returns page index's bytes, consulting the cache first.
func (c *Cache) Read(index int32) ([]byte, error) {
	if el, ok := c.entries[index]; ok {
		c.order.MoveToFront(el)
		cached := el.Value.(*cacheEntry).data
		out := make([]byte, len(cached))
		copy(out, cached)
		return out, nil
	}
	data, err := c.pager.Read(index)
	if err != nil {
		return nil, err
	}
	c.insert(index, data)
	return data, nil
}

// Write writes through to the underlying pager and refreshes the cache.
func (c *Cache) Write(data []byte, index int32) error {
	if err := c.pager.Write(data, index); err != nil {
		return err
	}
	c.insert(index, data)
	return nil
}

// Append writes through to the underlying pager and seeds the cache with
// the freshly appended page.
func (c *Cache) Append(data []byte) (int32, error) {
	index, err := c.pager.Append(data)
	if err != nil {
		return NoPage, err
	}
	c.insert(index, data)
	return index, nil
}

func (c *Cache) insert(index int32, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	if el, ok := c.entries[index]; ok {
		el.Value.(*cacheEntry).data = cp
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&cacheEntry{page: index, data: cp})
	c.entries[index] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).page)
		}
	}
}
