package engine

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"
)

// PlanCache is a mutex-guarded LRU from (workflow name, plan fingerprint)
// to reusable execution plans. Hit and miss counters are monotone.
type PlanCache struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	key  string
	plan *ExecutionPlan
}

// DefaultPlanCacheSize bounds the cache when no size is configured.
const DefaultPlanCacheSize = 2

// NewPlanCache creates a cache holding at most max plans.
func NewPlanCache(max int) *PlanCache {
	if max < 1 {
		max = DefaultPlanCacheSize
	}
	return &PlanCache{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func planKey(workflow string, fingerprint uint64) string {
	return fmt.Sprintf("%s#%016x", workflow, fingerprint)
}

// Get returns the cached plan for the key, marking it most recently used.
func (c *PlanCache) Get(workflow string, fingerprint uint64) (*ExecutionPlan, bool) {
	key := planKey(workflow, fingerprint)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits.Add(1)
	return elem.Value.(*cacheEntry).plan, true
}

// Put inserts a plan, evicting the least recently used entry when full.
func (c *PlanCache) Put(workflow string, fingerprint uint64, plan *ExecutionPlan) {
	key := planKey(workflow, fingerprint)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheEntry).plan = plan
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{key: key, plan: plan})
	c.entries[key] = elem

	for c.order.Len() > c.max {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Stats returns the monotone hit and miss counters.
func (c *PlanCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached plans.
func (c *PlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
