package cache

import (
	"context"
	"sync"
	"time"

	"github.com/oddsline/platform/internal/domain"
)

// MemoryMatchCache is an in-process MatchCache used when redis is not
// configured and in tests. Entries expire lazily on read.
type MemoryMatchCache struct {
	mu      sync.Mutex
	batches map[string]memoryEntry
	nightly map[string][]domain.FinishedMatch
	events  map[string]memoryEventEntry
}

type memoryEntry struct {
	matches   []domain.FinishedMatch
	expiresAt time.Time
}

type memoryEventEntry struct {
	match     domain.FinishedMatch
	expiresAt time.Time
}

// NewMemoryMatchCache creates an empty in-memory cache.
func NewMemoryMatchCache() *MemoryMatchCache {
	return &MemoryMatchCache{
		batches: make(map[string]memoryEntry),
		nightly: make(map[string][]domain.FinishedMatch),
		events:  make(map[string]memoryEventEntry),
	}
}

func (c *MemoryMatchCache) GetBatch(_ context.Context, key string) ([]domain.FinishedMatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.batches[key]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.batches, key)
		return nil, nil
	}
	return entry.matches, nil
}

func (c *MemoryMatchCache) SetBatch(_ context.Context, key string, matches []domain.FinishedMatch, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Empty batches cache as present-but-empty, matching the redis
	// behavior, so no-result windows are not refetched inside the TTL.
	if matches == nil {
		matches = []domain.FinishedMatch{}
	}
	c.batches[key] = memoryEntry{matches: matches, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *MemoryMatchCache) GetNightly(_ context.Context, sport string) ([]domain.FinishedMatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nightly[sport], nil
}

func (c *MemoryMatchCache) SetNightly(_ context.Context, sport string, matches []domain.FinishedMatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nightly[sport] = matches
	return nil
}

func (c *MemoryMatchCache) GetEvent(_ context.Context, eventID string) (*domain.FinishedMatch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.events[eventID]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.events, eventID)
		return nil, nil
	}
	m := entry.match
	return &m, nil
}

func (c *MemoryMatchCache) IndexEvents(_ context.Context, matches []domain.FinishedMatch, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range matches {
		c.events[m.EventID] = memoryEventEntry{match: m, expiresAt: time.Now().Add(ttl)}
	}
	return nil
}
