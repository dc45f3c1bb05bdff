package device

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Cached is a write-through LRU block cache in front of another Device.
//
// Writes always reach the underlying device before the cache is updated, so
// a failed write never leaves a cached block the device does not hold.
type Cached struct {
	Device

	mu        sync.Mutex
	capacity  int
	items     map[uint64]*list.Element
	evictList *list.List

	hits   atomic.Int64
	misses atomic.Int64
}

var _ Device = (*Cached)(nil)

type cacheEntry struct {
	id   uint64
	data []byte
}

// NewCached wraps dev with a cache holding up to capacity blocks.
// A capacity of zero or less returns a cache that never retains blocks.
func NewCached(dev Device, capacity int) *Cached {
	return &Cached{
		Device:    dev,
		capacity:  capacity,
		items:     make(map[uint64]*list.Element),
		evictList: list.New(),
	}
}

func (c *Cached) ReadBlock(id uint64, buf []byte) error {
	if err := checkBuf(buf); err != nil {
		return err
	}

	c.mu.Lock()
	if ent, ok := c.items[id]; ok {
		c.evictList.MoveToFront(ent)
		copy(buf, ent.Value.(*cacheEntry).data)
		c.mu.Unlock()
		c.hits.Add(1)
		return nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	if err := c.Device.ReadBlock(id, buf); err != nil {
		return err
	}
	c.set(id, buf)
	return nil
}

func (c *Cached) WriteBlock(id uint64, buf []byte) error {
	if err := c.Device.WriteBlock(id, buf); err != nil {
		c.invalidate(id)
		return err
	}
	c.set(id, buf)
	return nil
}

func (c *Cached) set(id uint64, buf []byte) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[id]; ok {
		copy(ent.Value.(*cacheEntry).data, buf)
		c.evictList.MoveToFront(ent)
		return
	}

	for c.evictList.Len() >= c.capacity {
		c.removeElement(c.evictList.Back())
	}

	data := make([]byte, BlockSize)
	copy(data, buf)
	c.items[id] = c.evictList.PushFront(&cacheEntry{id: id, data: data})
}

func (c *Cached) invalidate(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ent, ok := c.items[id]; ok {
		c.removeElement(ent)
	}
}

func (c *Cached) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	delete(c.items, e.Value.(*cacheEntry).id)
}

// Len returns the number of cached blocks.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Stats returns cache hit and miss counters.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
