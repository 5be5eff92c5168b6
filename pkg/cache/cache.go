package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrKeyExists indicates a live entry already exists for the key
var ErrKeyExists = errors.New("key already exists in cache")

// Cache is a weight-bounded LRU cache whose entries expire after a fixed TTL.
type Cache interface {
	// GetWeight returns the current weight of unexpired and expired-but-not-yet-evicted entries
	GetWeight() int

	// GetBudget returns the weight budget of the cache
	GetBudget() int

	// Insert adds a new entry. Inserting over an expired entry replaces it,
	// inserting over a live entry returns ErrKeyExists.
	Insert(key string, value interface{}, weight int) error

	// Retrieve returns a live entry by key
	Retrieve(key string) (interface{}, bool)

	// Clear removes all entries
	Clear()
}

type entry struct {
	key       string
	value     interface{}
	weight    int
	expiresAt time.Time
}

type cache struct {
	log *logrus.Entry

	budget int
	ttl    time.Duration
	now    func() time.Time

	mu     sync.Mutex
	order  *list.List
	lookup map[string]*list.Element
	weight int
}

// Option configures a Cache
type Option func(c *cache)

// WithClock overrides the time source used for expiry
func WithClock(now func() time.Time) Option {
	return func(c *cache) {
		c.now = now
	}
}

// NewCache returns a cache with the given weight budget. Entries live for ttl.
func NewCache(budget int, ttl time.Duration, opts ...Option) Cache {
	c := &cache{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		budget: budget,
		ttl:    ttl,
		now:    time.Now,
		order:  list.New(),
		lookup: make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *cache) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

func (c *cache) GetBudget() int {
	return c.budget
}

func (c *cache) Insert(key string, value interface{}, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if existing, ok := c.lookup[key]; ok {
		if !c.isExpired(existing, now) {
			return ErrKeyExists
		}
		c.remove(existing)
	}

	c.lookup[key] = c.order.PushFront(&entry{
		key:       key,
		value:     value,
		weight:    weight,
		expiresAt: now.Add(c.ttl),
	})
	c.weight += weight

	for c.weight > c.budget && c.order.Len() > 0 {
		evicted := c.order.Back()
		c.remove(evicted)

		e := evicted.Value.(*entry)
		c.log.WithFields(logrus.Fields{
			"key":          e.key,
			"weight":       e.weight,
			"spare_weight": c.budget - c.weight,
		}).Trace("cache eviction")
	}

	return nil
}

func (c *cache) Retrieve(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.lookup[key]
	if !ok {
		return nil, false
	}

	if c.isExpired(elem, c.now()) {
		c.remove(elem)
		return nil, false
	}

	c.order.MoveToFront(elem)
	return elem.Value.(*entry).value, true
}

func (c *cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.lookup = make(map[string]*list.Element)
	c.weight = 0
}

func (c *cache) isExpired(elem *list.Element, now time.Time) bool {
	return !now.Before(elem.Value.(*entry).expiresAt)
}

func (c *cache) remove(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.lookup, e.key)
	c.weight -= e.weight
}
