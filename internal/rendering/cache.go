package rendering

import "sync"

// sessionEntry records a remotely converted document session.
type sessionEntry struct {
	sessionID  string
	slideCount int
}

// sessionCache maps document fingerprints to remote conversion sessions so
// repeated renders of the same document skip the upload and convert round
// trip. It is shared across strategy instances and safe for concurrent use.
// Callers must perform remote work outside the lock and only publish the
// finished entry, keeping the critical section short.
type sessionCache struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
}

func newSessionCache() *sessionCache {
	return &sessionCache{entries: make(map[string]sessionEntry)}
}

func (c *sessionCache) get(fingerprint string) (sessionEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[fingerprint]
	return entry, ok
}

func (c *sessionCache) put(fingerprint string, entry sessionEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry
}

func (c *sessionCache) delete(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, fingerprint)
}
