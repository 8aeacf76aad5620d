package worldstate

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Fetcher is the upstream boundary the cache refreshes through.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Observer receives the new snapshot after every successful refresh.
type Observer func(*Snapshot)

// Cache holds the latest world-state snapshot behind a TTL and guarantees
// at most one in-flight upstream fetch regardless of caller concurrency.
// Construct one per process and share it by reference.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	logger  *zap.Logger

	mu        sync.RWMutex
	snapshot  *Snapshot
	observers map[int]Observer
	nextObsID int

	// refreshMu serializes physical fetches. Held across the upstream
	// call, so waiters queue instead of duplicating it.
	refreshMu sync.Mutex
}

// Info describes cache state for the status surface.
type Info struct {
	HasSnapshot   bool          `json:"has_snapshot"`
	Age           time.Duration `json:"age_ms"`
	TTL           time.Duration `json:"ttl_ms"`
	Valid         bool          `json:"valid"`
	ObserverCount int           `json:"observer_count"`
}

func NewCache(fetcher Fetcher, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher:   fetcher,
		ttl:       ttl,
		logger:    logger,
		observers: make(map[int]Observer),
	}
}

// Fetch returns the current snapshot, refreshing it from upstream when it
// is missing, expired, or force is set. When the upstream fetch fails the
// previous snapshot is returned even if expired; nil means no snapshot
// has ever been obtained.
func (c *Cache) Fetch(ctx context.Context, force bool) (*Snapshot, error) {
	if !force {
		if snap := c.validSnapshot(); snap != nil {
			return snap, nil
		}
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while this one waited.
	if !force {
		if snap := c.validSnapshot(); snap != nil {
			return snap, nil
		}
	}

	raw, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.logger.Warn("world state fetch failed, serving stale snapshot", zap.Error(err))
		return c.current(), err
	}

	snap, err := ParseSnapshot(raw, time.Now())
	if err != nil {
		c.logger.Warn("world state payload unparsable, serving stale snapshot", zap.Error(err))
		return c.current(), err
	}

	c.mu.Lock()
	c.snapshot = snap
	observers := make([]Observer, 0, len(c.observers))
	for _, obs := range c.observers {
		observers = append(observers, obs)
	}
	c.mu.Unlock()

	for _, obs := range observers {
		c.notify(obs, snap)
	}

	return snap, nil
}

func (c *Cache) notify(obs Observer, snap *Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("world state observer panicked", zap.Any("panic", r))
		}
	}()
	obs(snap)
}

// Subscribe registers an observer invoked synchronously after each
// successful refresh. Invocation order is unspecified. The returned
// function removes the observer.
func (c *Cache) Subscribe(obs Observer) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = obs
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Invalidate drops the cached snapshot, forcing the next Fetch to hit
// the upstream.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshot = nil
}

func (c *Cache) validSnapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snapshot == nil {
		return nil
	}
	if c.snapshot.Stale(c.ttl) {
		return nil
	}
	return c.snapshot
}

func (c *Cache) current() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Info reports cache state for the status server.
func (c *Cache) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := Info{
		TTL:           c.ttl,
		ObserverCount: len(c.observers),
	}
	if c.snapshot != nil {
		info.HasSnapshot = true
		info.Age = time.Since(c.snapshot.FetchedAt)
		info.Valid = info.Age < c.ttl
	}
	return info
}
