// Package geocache memoizes IP geolocation results in process memory.
//
// The cache holds at most Capacity entries. An entry older than the TTL reads
// as absent and is dropped on that read. When an insert would exceed the
// capacity, the least recently used entry is evicted. All operations take the
// same mutex, so a Get/Set pair from concurrent requests never corrupts the
// map; the last Set for an IP wins.
package geocache

import (
	"container/list"
	"sync"
	"time"

	"memeatlas/models"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = time.Hour
)

type entry struct {
	ip         string
	geo        models.GeoLocation
	insertedAt time.Time
}

type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	order    *list.List // front is most recently used
}

type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(capacity int, ttl time.Duration, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached location for ip if present and not expired.
func (c *Cache) Get(ip string) (models.GeoLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[ip]
	if !ok {
		return models.GeoLocation{}, false
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.items, ip)
		return models.GeoLocation{}, false
	}
	c.order.MoveToFront(el)
	return e.geo, true
}

// Set stores geo for ip, replacing any previous entry and restarting its TTL.
func (c *Cache) Set(ip string, geo models.GeoLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(ip, geo, c.now())
}

// SetAt stores geo as if it had been inserted at insertedAt, so an entry
// copied from another tier keeps its original age. It reports false and stores
// nothing when that age already exceeds the TTL.
func (c *Cache) SetAt(ip string, geo models.GeoLocation, insertedAt time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now().Sub(insertedAt) > c.ttl {
		return false
	}
	c.set(ip, geo, insertedAt)
	return true
}

func (c *Cache) set(ip string, geo models.GeoLocation, insertedAt time.Time) {
	if el, ok := c.items[ip]; ok {
		e := el.Value.(*entry)
		e.geo = geo
		e.insertedAt = insertedAt
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).ip)
	}
	c.items[ip] = c.order.PushFront(&entry{ip: ip, geo: geo, insertedAt: insertedAt})
}

// Now reads the cache clock.
func (c *Cache) Now() time.Time {
	return c.now()
}

// Len reports the number of entries held, expired ones included until read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}
