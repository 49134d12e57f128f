package apiflow

import (
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// ResponseCache memoizes GET responses for the duration of a session so
// that a provider consulted by several dependents is fetched once.
// Entries expire after a TTL and the least recently used entry is
// evicted when the cache is full.
type ResponseCache struct {
	entries *lru.LRU[string, *Response]
}

// NewResponseCache creates a cache holding up to size responses for at
// most ttl each. Non-positive arguments select the defaults.
func NewResponseCache(size int, ttl time.Duration) *ResponseCache {
	if size <= 0 {
		size = constants.DefaultCacheSize
	}

	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}

	return &ResponseCache{
		entries: lru.NewLRU[string, *Response](size, nil, ttl),
	}
}

// Get returns the cached response for key, if present and fresh.
func (c *ResponseCache) Get(key string) (*Response, bool) {
	return c.entries.Get(key)
}

// Set stores a response under key.
func (c *ResponseCache) Set(key string, resp *Response) {
	c.entries.Add(key, resp)
}

// Purge drops every entry.
func (c *ResponseCache) Purge() {
	c.entries.Purge()
}

// Len reports the number of live entries.
func (c *ResponseCache) Len() int {
	return c.entries.Len()
}

// CacheKey derives a stable cache key from an endpoint and its resolved
// parameters. Parameter order does not affect the key.
func CacheKey(endpoint *Endpoint, params map[string]interface{}) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	var builder strings.Builder

	builder.WriteString(endpoint.Method)
	builder.WriteString(" ")
	builder.WriteString(endpoint.Path)

	for _, name := range names {
		fmt.Fprintf(&builder, "|%s=%v", name, params[name])
	}

	return builder.String()
}
