package expr

import (
	"sort"
	"strings"
	"sync"
)

// evalCache memoises evaluation results for the lifetime of one evaluator.
// Keys combine the AST fingerprint, the environment's key set, and the
// caller-supplied context stamp, so entries from one run never satisfy
// lookups from another.
type evalCache struct {
	mu      sync.Mutex
	entries map[string]any
}

func newEvalCache() *evalCache {
	return &evalCache{entries: make(map[string]any)}
}

func cacheKey(node *Node, env Environment, stamp string) string {
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(node.Fingerprint())
	sb.WriteString("|")
	sb.WriteString(strings.Join(keys, ","))
	sb.WriteString("|")
	sb.WriteString(stamp)
	return sb.String()
}

func (c *evalCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *evalCache) put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}
