package apiflow

import (
	"sort"
	"sync"
)

// Context is the resolved-value cache shared by every step of one
// resolution session. It maps parameter names to resolved scalar
// values.
//
// A single coarse lock guards the whole map: writes are small and
// infrequent, and sibling steps running concurrently must never observe
// a partial write. During one executor run only the executor writes;
// everything else reads.
type Context struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[string]interface{})}
}

// Seed copies the given values in, typically from a persistence
// collaborator at session start.
func (c *Context) Seed(values map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, value := range values {
		c.values[name] = value
	}
}

// Get returns the resolved value for name.
func (c *Context) Get(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.values[name]

	return value, ok
}

// Has reports whether name has a resolved value.
func (c *Context) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.values[name]

	return ok
}

// Set records a resolved value.
func (c *Context) Set(name string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[name] = value
}

// Len returns the number of resolved values.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.values)
}

// Names returns all resolved parameter names, sorted.
func (c *Context) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Snapshot returns a copy of the current values, safe to read without
// holding the lock. Graph building works against snapshots.
func (c *Context) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]interface{}, len(c.values))
	for name, value := range c.values {
		snapshot[name] = value
	}

	return snapshot
}

// Export is an alias for Snapshot, used by persistence collaborators at
// session end.
func (c *Context) Export() map[string]interface{} {
	return c.Snapshot()
}

// Clear removes every resolved value. The owning collaborator calls
// this between sessions; the executor never does.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values = make(map[string]interface{})
}
