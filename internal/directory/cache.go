// Package directory keeps a durable local mirror of the identity provider's
// users. The mirror answers existence and search queries without network I/O
// and is replaced wholesale on Refresh.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"authentik-admin/internal/domain"
	"authentik-admin/internal/metrics"
)

const DefaultRefreshTimeout = 30 * time.Second

// SnapshotStore persists the whole directory table.
type SnapshotStore interface {
	Load(ctx context.Context) ([]domain.UserRecord, error)
	Save(ctx context.Context, records []domain.UserRecord) error
}

// Cache implements domain.DirectoryCache.
type Cache struct {
	lister  domain.UserLister
	store   SnapshotStore
	timeout time.Duration
	metrics *metrics.Metrics

	// mu serialises writers. Readers go through current only.
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewCache creates an empty cache. Call Load to restore the persisted snapshot.
func NewCache(lister domain.UserLister, store SnapshotStore, timeout time.Duration, m *metrics.Metrics) *Cache {
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	c := &Cache{
		lister:  lister,
		store:   store,
		timeout: timeout,
		metrics: m,
	}
	c.current.Store(newSnapshot(nil))
	return c
}

// Load replaces the in-memory table with the persisted snapshot.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load directory snapshot: %w", err)
	}
	next := newSnapshot(records)
	c.current.Store(next)
	c.metrics.SnapshotSize(len(next.records))
	return nil
}

// Refresh fetches the full provider listing and replaces the table. On any
// failure the previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	records, err := c.lister.ListAllUsers(fetchCtx)
	if err != nil {
		reason := "upstream_error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		c.metrics.RefreshFailed(reason)
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	next := newSnapshot(records)
	if err := c.persist(ctx, next); err != nil {
		c.metrics.RefreshFailed("persist_error")
		return err
	}
	c.current.Store(next)
	c.metrics.RefreshSucceeded(len(next.records))
	return nil
}

func (c *Cache) Exists(username string) bool {
	_, ok := c.current.Load().get(username)
	return ok
}

func (c *Cache) Get(username string) (domain.UserRecord, bool) {
	return c.current.Load().get(username)
}

// Find returns records whose username, full name or email contain query,
// ignoring case.
func (c *Cache) Find(query string) []domain.UserRecord {
	return c.current.Load().find(query)
}

func (c *Cache) All() []domain.UserRecord {
	return c.current.Load().all()
}

func (c *Cache) Len() int {
	return len(c.current.Load().records)
}

// Upsert inserts or overwrites the record keyed by its username.
func (c *Cache) Upsert(ctx context.Context, record domain.UserRecord) error {
	if Key(record.Username) == "" {
		return domain.ErrUsernameRequired
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.current.Load().withUpsert(record)
	if err := c.persist(ctx, next); err != nil {
		return err
	}
	c.current.Store(next)
	c.metrics.SnapshotSize(len(next.records))
	return nil
}

// Remove deletes the record for username. Removing an unknown username is a no-op.
func (c *Cache) Remove(ctx context.Context, username string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.current.Load()
	next := cur.without(username)
	if next == cur {
		return nil
	}
	if err := c.persist(ctx, next); err != nil {
		return err
	}
	c.current.Store(next)
	c.metrics.SnapshotSize(len(next.records))
	return nil
}

func (c *Cache) persist(ctx context.Context, s *snapshot) error {
	if err := c.store.Save(ctx, s.records); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceWrite, err)
	}
	return nil
}
