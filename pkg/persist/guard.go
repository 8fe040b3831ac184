package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/vine/internal/logging"
	"github.com/aretw0/vine/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed writer can hold a distributed lock.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Guard orchestrates storage access, serializing operations on the same key.
// It uses Reference Counting to garbage collect unused locks.
type Guard struct {
	storage ports.Storage

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger // Logger for internal events (like deferred errors)
}

// GuardOption configures the Guard.
type GuardOption func(*Guard)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) GuardOption {
	return func(g *Guard) {
		g.locker = locker
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) GuardOption {
	return func(g *Guard) {
		if ttl > 0 {
			g.lockTTL = ttl
		}
	}
}

// WithGuardLogger configures a logger for the Guard.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard wraps storage with per-key locking.
func NewGuard(storage ports.Storage, opts ...GuardOption) *Guard {
	g := &Guard{
		storage: storage,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (g *Guard) acquire(key string) *lockEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[key]
	if !exists {
		entry = &lockEntry{}
		g.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (g *Guard) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(g.locks, key)
	}
}

// Load reads the raw value stored under key.
func (g *Guard) Load(ctx context.Context, key string) (string, error) {
	var value string
	err := g.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		value, err = g.storage.GetItem(ctx, key)
		return err
	})
	return value, err
}

// Save writes value under key.
func (g *Guard) Save(ctx context.Context, key, value string) error {
	return g.WithLock(ctx, key, func(ctx context.Context) error {
		return g.storage.SetItem(ctx, key, value)
	})
}

// Delete removes key from the storage.
func (g *Guard) Delete(ctx context.Context, key string) error {
	return g.WithLock(ctx, key, func(ctx context.Context) error {
		return g.storage.RemoveItem(ctx, key)
	})
}

// Keys delegates to the storage.
func (g *Guard) Keys(ctx context.Context) ([]string, error) {
	return g.storage.Keys(ctx)
}

// Storage returns the underlying storage.
func (g *Guard) Storage() ports.Storage {
	return g.storage
}

// WithLock executes a function while holding the lock for key.
func (g *Guard) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := g.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		g.release(key)
	}()

	// Distributed Locking
	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, key, g.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				g.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
