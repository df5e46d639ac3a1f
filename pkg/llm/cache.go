package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// responseCache memoizes deterministic completions for a bounded TTL.
// Entries are evicted lazily on access.
type responseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	resp    *Response
	expires time.Time
}

func newResponseCache(ttl time.Duration) *responseCache {
	return &responseCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%d", req.Model, req.SystemPrompt, req.UserPrompt, req.MaxTokens)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.resp, true
}

func (c *responseCache) put(key string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, expires: time.Now().Add(c.ttl)}
}
