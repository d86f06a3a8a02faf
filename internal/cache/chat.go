// Package cache holds the store behind the router's optional chat response
// caching: an in-memory LRU with TTL expiry, keyed by request content.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/ferro-labs/model-router/providers"
)

// ChatKey derives the cache key for a chat request from its serialized
// content. Requests that marshal identically share a key.
func ChatKey(req providers.ChatRequest) string {
	raw, _ := json.Marshal(req)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Chat is a thread-safe LRU of chat responses with TTL expiry.
type Chat struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	items    map[string]*list.Element
	order    *list.List
}

type chatEntry struct {
	key       string
	resp      *providers.ChatResponse
	expiresAt time.Time
}

// NewChat creates a chat response cache. Defaults are applied for
// zero/negative values: capacity=256, ttl=5m.
func NewChat(capacity int, ttl time.Duration) *Chat {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Chat{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached response for key, dropping the entry when it has
// expired.
func (c *Chat) Get(key string) (*providers.ChatResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*chatEntry)
	if c.now().After(entry.expiresAt) {
		c.remove(elem)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return entry.resp, true
}

// Put stores resp under key, evicting the least recently used entry when
// the cache is full.
func (c *Chat) Put(key string, resp *providers.ChatResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*chatEntry)
		entry.resp = resp
		entry.expiresAt = c.now().Add(c.ttl)
		return
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	elem := c.order.PushFront(&chatEntry{
		key:       key,
		resp:      resp,
		expiresAt: c.now().Add(c.ttl),
	})
	c.items[key] = elem
}

// Len returns the number of entries currently held, expired or not.
func (c *Chat) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// remove must be called with c.mu held.
func (c *Chat) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*chatEntry).key)
}
