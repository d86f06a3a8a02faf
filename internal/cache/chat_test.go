package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/ferro-labs/model-router/providers"
)

func newTestChat(capacity int, ttl time.Duration) (*Chat, *time.Time) {
	c := NewChat(capacity, ttl)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestChatKey_StableAndContentSensitive(t *testing.T) {
	a := providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: "hi"}}}
	b := providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: "hi"}}}
	c := providers.ChatRequest{Messages: []providers.Message{{Role: "user", Content: "bye"}}}

	if ChatKey(a) != ChatKey(b) {
		t.Error("identical requests produced different keys")
	}
	if ChatKey(a) == ChatKey(c) {
		t.Error("different requests produced the same key")
	}
}

func TestChat_PutAndGet(t *testing.T) {
	c, _ := newTestChat(8, time.Minute)
	c.Put("k", &providers.ChatResponse{ID: "resp-1", Model: "gpt-4o"})

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.ID != "resp-1" {
		t.Errorf("ID = %s, want resp-1", got.ID)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("expected cache miss")
	}
}

func TestChat_TTLExpiry(t *testing.T) {
	c, now := newTestChat(8, time.Minute)
	c.Put("k", &providers.ChatResponse{ID: "resp-1"})

	*now = now.Add(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0 after the expired entry is dropped", c.Len())
	}
}

func TestChat_LRUEviction(t *testing.T) {
	c, _ := newTestChat(2, time.Minute)
	c.Put("a", &providers.ChatResponse{ID: "a"})
	c.Put("b", &providers.ChatResponse{ID: "b"})
	c.Get("a") // "b" is now least recently used
	c.Put("c", &providers.ChatResponse{ID: "c"})

	if _, ok := c.Get("b"); ok {
		t.Error("expected 'b' to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected 'a' to survive (recently used)")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected 'c' to be present")
	}
}

func TestChat_PutRefreshesExistingKey(t *testing.T) {
	c, _ := newTestChat(8, time.Minute)
	c.Put("k", &providers.ChatResponse{ID: "old"})
	c.Put("k", &providers.ChatResponse{ID: "new"})

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.ID != "new" {
		t.Errorf("ID = %s, want new", got.ID)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestChat_Concurrent(_ *testing.T) {
	c := NewChat(64, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%8))
			c.Put(key, &providers.ChatResponse{ID: key})
			c.Get(key)
			c.Len()
		}(i)
	}
	wg.Wait()
}
