package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

type memoryEntry struct {
	frame   *domain.BeliefFrame
	expires time.Time
}

// Memory is the FrameCache used when no Redis is configured, and in tests.
type Memory struct {
	mu       sync.RWMutex
	ttl      time.Duration
	versions map[int64]int64
	entries  map[string]memoryEntry
	now      func() time.Time
}

// NewMemory creates an in-process frame cache. A zero TTL keeps entries
// until invalidated.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:      ttl,
		versions: make(map[int64]int64),
		entries:  make(map[string]memoryEntry),
		now:      time.Now,
	}
}

func (c *Memory) key(sensorID int64, fingerprint string) string {
	return fmt.Sprintf("%d:%d:%s", sensorID, c.versions[sensorID], fingerprint)
}

func (c *Memory) Get(_ context.Context, sensorID int64, fingerprint string) (*domain.BeliefFrame, bool) {
	c.mu.RLock()
	entry, ok := c.entries[c.key(sensorID, fingerprint)]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !entry.expires.IsZero() && c.now().After(entry.expires) {
		return nil, false
	}
	return entry.frame.Clone(), true
}

func (c *Memory) Set(_ context.Context, sensorID int64, fingerprint string, f *domain.BeliefFrame) {
	entry := memoryEntry{frame: f.Clone()}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[c.key(sensorID, fingerprint)] = entry
	c.mu.Unlock()
}

func (c *Memory) InvalidateSensor(_ context.Context, sensorID int64) {
	c.mu.Lock()
	c.versions[sensorID]++
	c.mu.Unlock()
}
