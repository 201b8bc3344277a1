// Package cache provides a weight bounded LRU cache.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Cache is a concurrency safe LRU cache bounded by the total weight of its
// entries. Entries optionally expire after a maximum age.
type Cache interface {
	// GetWeight returns the current total weight of the cache.
	GetWeight() int

	// GetBudget returns the weight budget of the cache.
	GetBudget() int

	// Insert adds or replaces an entry, evicting the least recently used
	// entries until the cache is within budget.
	Insert(key string, value interface{}, weight int)

	// Retrieve returns the entry for key, marking it as recently used.
	Retrieve(key string) (interface{}, bool)

	// Remove drops the entry for key, if present.
	Remove(key string)

	// Clear removes all entries.
	Clear()
}

type entry struct {
	key      string
	value    interface{}
	weight   int
	inserted time.Time
}

type cache struct {
	log    *logrus.Entry
	budget int
	maxAge time.Duration

	mu     sync.Mutex
	order  *list.List // front is most recently used
	lookup map[string]*list.Element
	weight int
}

// NewCache returns a cache with the given weight budget. Entries never
// expire.
func NewCache(budget int) Cache {
	return NewCacheWithMaxAge(budget, 0)
}

// NewCacheWithMaxAge returns a cache whose entries are dropped once older
// than maxAge. A zero maxAge disables expiry.
func NewCacheWithMaxAge(budget int, maxAge time.Duration) Cache {
	return &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		budget: budget,
		maxAge: maxAge,
		order:  list.New(),
		lookup: make(map[string]*list.Element),
	}
}

func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

func (c *cache) Insert(key string, value interface{}, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lookup[key]; ok {
		c.removeElement(existing)
	}

	c.lookup[key] = c.order.PushFront(&entry{
		key:      key,
		value:    value,
		weight:   weight,
		inserted: time.Now(),
	})
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		evicted := c.order.Back().Value.(*entry)
		c.removeElement(c.order.Back())

		c.log.WithFields(logrus.Fields{
			"key":          evicted.key,
			"weight":       evicted.weight,
			"spare_weight": c.budget - c.weight,
		}).Debug("evicted cache entry")
	}
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.lookup[key]
	if !ok {
		return nil, false
	}

	e := element.Value.(*entry)
	if c.maxAge > 0 && time.Since(e.inserted) > c.maxAge {
		c.removeElement(element)
		return nil, false
	}

	c.order.MoveToFront(element)
	return e.value, true
}

func (c *cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.lookup[key]; ok {
		c.removeElement(element)
	}
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}

func (c *cache) removeElement(element *list.Element) {
	e := c.order.Remove(element).(*entry)
	delete(c.lookup, e.key)
	c.weight -= e.weight
}
