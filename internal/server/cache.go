package server

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GriffinCanCode/hibp/internal/infrastructure/monitoring"
)

// Cache memoizes rendered response bodies keyed by query. Range bodies
// dominate mirror traffic and cost a render of up to a thousand lines,
// so a small LRU absorbs most of the work. A nil *Cache disables
// caching; all methods are safe on it.
type Cache struct {
	c       *lru.Cache[string, []byte]
	metrics *monitoring.ServerMetrics
}

// NewCache creates a response cache holding up to size bodies. A size
// of zero or less disables caching.
func NewCache(size int, metrics *monitoring.ServerMetrics) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, metrics: metrics}, nil
}

// Get returns the cached body for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	body, ok := c.c.Get(key)
	if c.metrics != nil {
		c.metrics.RecordCache(ok)
	}
	return body, ok
}

// Add stores a rendered body. Callers must not mutate body afterwards.
func (c *Cache) Add(key string, body []byte) {
	if c == nil {
		return
	}
	c.c.Add(key, body)
}

// Len returns the number of cached bodies.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.c.Len()
}
