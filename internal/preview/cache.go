package preview

import (
	"fmt"
	"sync"
	"time"
)

// FileIdentity identifies a source file by metadata. Two files with the same
// name, size and modification time are treated as the same document.
type FileIdentity struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Key is the cache key for the identity.
func (id FileIdentity) Key() string {
	return fmt.Sprintf("pdf-preview-%s-%d-%d", id.Name, id.Size, id.ModTime.UnixMilli())
}

// Entry is a rendered thumbnail strip. Pages[i] is document page i+1.
// Total is the document's page count, so a strip that already covers
// every page satisfies any larger cap.
type Entry struct {
	Pages []string
	Total int
}

// Cache holds thumbnail strips for the life of the process. There is no
// eviction.
type Cache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// want is the number of pages a request for pageCap needs; pageCap <= 0 means all.
func (e Entry) want(pageCap int) int {
	if pageCap <= 0 {
		return e.Total
	}
	if e.Total > 0 && pageCap > e.Total {
		return e.Total
	}
	return pageCap
}

// Get returns the first pageCap thumbnails when the cached strip holds at
// least that many. A shorter strip is a miss.
func (c *Cache) Get(id FileIdentity, pageCap int) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id.Key()]
	if !ok {
		return nil, false
	}
	n := e.want(pageCap)
	if n <= 0 || len(e.Pages) < n {
		return nil, false
	}
	out := make([]string, n)
	copy(out, e.Pages[:n])
	return out, true
}

// Put stores a strip, replacing any previous one for id.
func (c *Cache) Put(id FileIdentity, pages []string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id.Key()] = Entry{Pages: append([]string(nil), pages...), Total: total}
}

func (c *Cache) Invalidate(id FileIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id.Key())
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Len reports the number of cached documents.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
