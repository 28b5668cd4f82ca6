package schema

// LockCount reports how many per-connection load locks c holds.
func LockCount(c *Cache) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locks)
}
