package validation

import (
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// resultCache stores async validation results keyed by (field, exact value).
// Keying on the exact value is what makes stale-result discard work: a result
// computed for value "a" can never be looked up for value "b".
type resultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// cacheKey derives the (field, value) lookup key. Values are JSON-encoded so
// composite values (slices, file references) key deterministically.
func cacheKey(fieldName string, value any) string {
	encoded, err := sonic.MarshalString(value)
	if err != nil {
		encoded = fmt.Sprintf("!%v", value)
	}
	return fieldName + "\x00" + encoded
}

func (c *resultCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return Result{}, false
	}
	return entry.result, true
}

func (c *resultCache) put(key string, result Result) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{result: result, storedAt: c.now()}
	c.mu.Unlock()
}

// invalidateField drops every cached entry for the named field, regardless
// of value. Used by the dependency cascade: when field A changes, B's cached
// "valid" must not survive.
func (c *resultCache) invalidateField(fieldName string) {
	prefix := fieldName + "\x00"
	c.mu.Lock()
	for key := range c.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *resultCache) clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
