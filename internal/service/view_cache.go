package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/dispatchbot/internal/domain"
)

// ViewCache keeps recently read conversations. Entries expire after ttl or
// when invalidated after a write.
type ViewCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]cachedView
	// gens counts invalidations per conversation.
	gens map[uuid.UUID]uint64
	ttl  time.Duration
	now  func() time.Time
}

type cachedView struct {
	conv     domain.Conversation
	cachedAt time.Time
}

func NewViewCache(ttl time.Duration) *ViewCache {
	return &ViewCache{
		entries: make(map[uuid.UUID]cachedView),
		gens:    make(map[uuid.UUID]uint64),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ViewCache) Get(id uuid.UUID) (domain.Conversation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok || c.now().Sub(e.cachedAt) > c.ttl {
		return domain.Conversation{}, false
	}
	return cloneConversation(e.conv), true
}

func (c *ViewCache) Set(conv domain.Conversation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[conv.ID] = cachedView{conv: cloneConversation(conv), cachedAt: c.now()}
}

// Generation is read before loading from the store and passed to
// SetIfCurrent afterwards.
func (c *ViewCache) Generation(id uuid.UUID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gens[id]
}

// SetIfCurrent caches conv unless it was invalidated since gen was read.
func (c *ViewCache) SetIfCurrent(conv domain.Conversation, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[conv.ID] != gen {
		return false
	}
	c.entries[conv.ID] = cachedView{conv: cloneConversation(conv), cachedAt: c.now()}
	return true
}

func (c *ViewCache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	c.gens[id]++
}

func cloneConversation(conv domain.Conversation) domain.Conversation {
	turns := make([]domain.Turn, len(conv.Turns))
	copy(turns, conv.Turns)
	conv.Turns = turns
	return conv
}
