package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	key         string
	windowStart time.Time
	count       int
	lastSeen    time.Time
	element     *list.Element
}

// MemoryLimiter implements a fixed-window in-memory rate limiter with a
// bounded key set. Distinct keys beyond maxKeys evict least-recently-used
// counters, and counters idle longer than idleTTL expire, so the store
// cannot grow without bound under high-cardinality traffic.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
	order    *list.List // front = most recently used
	maxKeys  int
	idleTTL  time.Duration
}

// Default bounds applied when the caller passes non-positive values.
const (
	defaultMaxKeys = 100000
	defaultIdleTTL = 2 * time.Hour
)

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter(maxKeys int, idleTTL time.Duration) *MemoryLimiter {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	if idleTTL <= 0 {
		idleTTL = defaultIdleTTL
	}
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
		order:    list.New(),
		maxKeys:  maxKeys,
		idleTTL:  idleTTL,
	}
}

// Allow checks whether the request fits in the current window for key.
// Lookup, window reset, and increment happen under one lock, so two
// concurrent requests for the same key cannot both consume the last slot.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" || window <= 0 {
		return Result{Allowed: true, Limit: limit}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.counters[key]
	if entry == nil {
		// lastSeen must be set before pruning or the TTL pass would
		// evict the entry it just inserted.
		entry = &memoryEntry{key: key, windowStart: now, lastSeen: now}
		entry.element = l.order.PushFront(entry)
		l.counters[key] = entry
		l.pruneLocked(now)
	} else {
		l.order.MoveToFront(entry.element)
		entry.lastSeen = now
	}

	if now.Sub(entry.windowStart) >= window {
		entry.windowStart = now
		entry.count = 0
	}
	reset := entry.windowStart.Add(window)

	if entry.count >= limit {
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: retryAfterSeconds(reset, now),
		}, nil
	}
	entry.count++
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - entry.count,
		Reset:     reset,
	}, nil
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

// SweepExpired removes counters idle longer than the TTL. Safe to call
// from a background cadence; eviction also happens lazily on insert.
func (l *MemoryLimiter) SweepExpired(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for element := l.order.Back(); element != nil; {
		entry := element.Value.(*memoryEntry)
		if now.Sub(entry.lastSeen) < l.idleTTL {
			break
		}
		prev := element.Prev()
		l.removeLocked(entry)
		removed++
		element = prev
	}
	return removed
}

// pruneLocked enforces the key bound and drops idle entries from the
// LRU tail. Callers must hold the lock.
func (l *MemoryLimiter) pruneLocked(now time.Time) {
	for len(l.counters) > l.maxKeys {
		element := l.order.Back()
		if element == nil {
			return
		}
		l.removeLocked(element.Value.(*memoryEntry))
	}
	for element := l.order.Back(); element != nil; {
		entry := element.Value.(*memoryEntry)
		if now.Sub(entry.lastSeen) < l.idleTTL {
			return
		}
		prev := element.Prev()
		l.removeLocked(entry)
		element = prev
	}
}

func (l *MemoryLimiter) removeLocked(entry *memoryEntry) {
	l.order.Remove(entry.element)
	delete(l.counters, entry.key)
}

// retryAfterSeconds returns the whole seconds until reset, rounded up,
// never less than 1 for a denied request.
func retryAfterSeconds(reset, now time.Time) int {
	remaining := reset.Sub(now)
	if remaining <= 0 {
		return 1
	}
	seconds := int((remaining + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
