package schema

import (
	"context"
	"log"
	"sync"
	"time"

	"workbench/internal/domain"
)

// ConnectionSource resolves a connection id to its current descriptor.
type ConnectionSource interface {
	Get(ctx context.Context, id int64) (domain.ConnectionDescriptor, error)
}

// Cache serves schema snapshots per connection, loading on a miss.
// Loads for the same connection are serialized; different connections never wait
// on each other.
type Cache struct {
	conns  ConnectionSource
	loader Loader
	store  Store
	now    func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewCache creates a Cache. A nil store means an in-memory store without expiry.
func NewCache(conns ConnectionSource, loader Loader, store Store) *Cache {
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &Cache{conns: conns, loader: loader, store: store, now: time.Now, locks: make(map[int64]*sync.Mutex)}
}

// SetClock overrides the clock used for LastRefreshed.
func (c *Cache) SetClock(now func() time.Time) { c.now = now }

func (c *Cache) keyLock(id int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	return l
}

// GetSchema returns the cached snapshot for connectionID or loads one.
func (c *Cache) GetSchema(ctx context.Context, connectionID int64) (*domain.SchemaSnapshot, error) {
	if connectionID == 0 {
		return nil, domain.NewValidationError("connectionId", "Connection ID is required")
	}
	conn, err := c.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	l := c.keyLock(connectionID)
	l.Lock()
	defer l.Unlock()

	if snap, ok, err := c.store.Get(ctx, connectionID); err != nil {
		log.Printf("[Schema] cache read for connection %d failed, reloading: %v", connectionID, err)
	} else if ok {
		return snap, nil
	}

	snap, err := c.loader.Load(ctx, conn)
	if err != nil {
		return nil, err
	}
	snap.ConnectionID = connectionID
	snap.LastRefreshed = c.now().UTC()
	if err := c.store.Set(ctx, snap); err != nil {
		log.Printf("[Schema] cache write for connection %d failed: %v", connectionID, err)
	}
	log.Printf("[Schema] loaded connection %d: %d tables, %d views, %d procedures",
		connectionID, len(snap.Tables), len(snap.Views), len(snap.Procedures))
	return snap, nil
}

// RefreshSchema drops the cached snapshot for connectionID and loads a new one.
// Other connections' entries are untouched.
func (c *Cache) RefreshSchema(ctx context.Context, connectionID int64) (*domain.SchemaSnapshot, error) {
	if connectionID == 0 {
		return nil, domain.NewValidationError("connectionId", "Connection ID is required")
	}
	if err := c.Invalidate(ctx, connectionID); err != nil {
		return nil, err
	}
	return c.GetSchema(ctx, connectionID)
}

// Invalidate drops the cached snapshot for connectionID.
func (c *Cache) Invalidate(ctx context.Context, connectionID int64) error {
	l := c.keyLock(connectionID)
	l.Lock()
	defer l.Unlock()
	return c.store.Delete(ctx, connectionID)
}

// GetTableDetails returns one table with its indexes and constraints.
func (c *Cache) GetTableDetails(ctx context.Context, connectionID int64, table string) (*domain.TableDetails, error) {
	snap, err := c.GetSchema(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	t, ok := snap.Table(table)
	if !ok {
		return nil, &domain.NotFoundError{Resource: "table", ID: table}
	}
	conn, err := c.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	indexes, constraints, err := c.loader.Details(ctx, conn, t)
	if err != nil {
		return nil, err
	}
	if indexes == nil {
		indexes = []domain.IndexInfo{}
	}
	if constraints == nil {
		constraints = []domain.ConstraintInfo{}
	}
	return &domain.TableDetails{TableInfo: t, Indexes: indexes, Constraints: constraints}, nil
}

// HandleConnectionEvent drops the snapshot of a connection that changed or went away,
// and the load lock of a deleted one.
func (c *Cache) HandleConnectionEvent(ev domain.ConnectionEvent) {
	switch ev.Kind {
	case domain.ConnectionUpdated, domain.ConnectionDeleted:
		if err := c.Invalidate(context.Background(), ev.Connection.ID); err != nil {
			log.Printf("[Schema] invalidate connection %d: %v", ev.Connection.ID, err)
		}
	}
	if ev.Kind == domain.ConnectionDeleted {
		c.mu.Lock()
		delete(c.locks, ev.Connection.ID)
		c.mu.Unlock()
	}
}
