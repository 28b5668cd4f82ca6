package schema_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"workbench/internal/domain"
	"workbench/internal/query"
	"workbench/internal/schema"
)

type fakeConns map[int64]domain.ConnectionDescriptor

func (f fakeConns) Get(_ context.Context, id int64) (domain.ConnectionDescriptor, error) {
	c, ok := f[id]
	if !ok {
		return c, &domain.NotFoundError{Resource: "connection", ID: id}
	}
	return c, nil
}

// countingLoader counts loads per connection on top of another loader.
type countingLoader struct {
	schema.Loader
	loads atomic.Int64
}

func (l *countingLoader) Load(ctx context.Context, conn domain.ConnectionDescriptor) (*domain.SchemaSnapshot, error) {
	l.loads.Add(1)
	return l.Loader.Load(ctx, conn)
}

func twoConns() fakeConns {
	return fakeConns{
		1: {ID: 1, Name: "a", Engine: domain.EnginePostgreSQL},
		2: {ID: 2, Name: "b", Engine: domain.EnginePostgreSQL},
	}
}

// ─────────────────────────────────────────────────────────────
// Cache
// ─────────────────────────────────────────────────────────────

func TestGetSchema_FixtureAndCaching(t *testing.T) {
	loader := &countingLoader{Loader: schema.SimulatedLoader{}}
	c := schema.NewCache(twoConns(), loader, nil)
	ctx := context.Background()

	snap, err := c.GetSchema(ctx, 1)
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	if len(snap.Tables) != 3 || len(snap.Views) != 1 || len(snap.Procedures) != 1 {
		t.Fatalf("unexpected fixture shape: %+v", snap)
	}
	users, _ := snap.Table("users")
	if users.RowCount == nil || *users.RowCount != 1250 || len(users.PrimaryKey()) != 1 {
		t.Errorf("unexpected users table %+v", users)
	}
	if snap.Procedures[0].Name != "get_user_stats" || snap.Views[0].Name != "user_orders_view" {
		t.Errorf("unexpected view/procedure names")
	}
	if snap.ConnectionID != 1 || snap.LastRefreshed.IsZero() {
		t.Errorf("snapshot not stamped: %d %v", snap.ConnectionID, snap.LastRefreshed)
	}

	if _, err := c.GetSchema(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if n := loader.loads.Load(); n != 1 {
		t.Errorf("expected one load, got %d", n)
	}
}

func TestGetSchema_Errors(t *testing.T) {
	c := schema.NewCache(twoConns(), schema.SimulatedLoader{}, nil)
	var verr *domain.ValidationError
	if _, err := c.GetSchema(context.Background(), 0); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	var nf *domain.NotFoundError
	if _, err := c.GetSchema(context.Background(), 9); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestRefreshSchema_TouchesOnlyItsKey(t *testing.T) {
	loader := &countingLoader{Loader: schema.SimulatedLoader{}}
	c := schema.NewCache(twoConns(), loader, nil)
	ctx := context.Background()

	_, _ = c.GetSchema(ctx, 1)
	_, _ = c.GetSchema(ctx, 2)
	if _, err := c.RefreshSchema(ctx, 1); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	_, _ = c.GetSchema(ctx, 2)
	if n := loader.loads.Load(); n != 3 {
		t.Errorf("expected 3 loads (two initial and one refresh), got %d", n)
	}
}

func TestConnectionEventsInvalidate(t *testing.T) {
	loader := &countingLoader{Loader: schema.SimulatedLoader{}}
	conns := twoConns()
	c := schema.NewCache(conns, loader, nil)
	ctx := context.Background()

	_, _ = c.GetSchema(ctx, 1)
	c.HandleConnectionEvent(domain.ConnectionEvent{Kind: domain.ConnectionConnected, Connection: conns[1]})
	_, _ = c.GetSchema(ctx, 1)
	if n := loader.loads.Load(); n != 1 {
		t.Errorf("connect must not invalidate, got %d loads", n)
	}
	c.HandleConnectionEvent(domain.ConnectionEvent{Kind: domain.ConnectionUpdated, Connection: conns[1]})
	_, _ = c.GetSchema(ctx, 1)
	if n := loader.loads.Load(); n != 2 {
		t.Errorf("update must invalidate, got %d loads", n)
	}
}

func TestConnectionDeletedReleasesLock(t *testing.T) {
	conns := twoConns()
	c := schema.NewCache(conns, schema.SimulatedLoader{}, nil)
	ctx := context.Background()

	_, _ = c.GetSchema(ctx, 1)
	_, _ = c.GetSchema(ctx, 2)
	if n := schema.LockCount(c); n != 2 {
		t.Fatalf("expected 2 load locks, got %d", n)
	}
	c.HandleConnectionEvent(domain.ConnectionEvent{Kind: domain.ConnectionUpdated, Connection: conns[1]})
	c.HandleConnectionEvent(domain.ConnectionEvent{Kind: domain.ConnectionDeleted, Connection: conns[2]})
	if n := schema.LockCount(c); n != 1 {
		t.Errorf("expected the deleted connection's lock to go, got %d locks", n)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := schema.NewMemoryStore(time.Minute)
	store.SetClock(func() time.Time { return now })
	loader := &countingLoader{Loader: schema.SimulatedLoader{}}
	c := schema.NewCache(twoConns(), loader, store)
	ctx := context.Background()

	_, _ = c.GetSchema(ctx, 1)
	now = now.Add(59 * time.Second)
	_, _ = c.GetSchema(ctx, 1)
	if n := loader.loads.Load(); n != 1 {
		t.Errorf("expected a hit before expiry, got %d loads", n)
	}
	now = now.Add(2 * time.Second)
	_, _ = c.GetSchema(ctx, 1)
	if n := loader.loads.Load(); n != 2 {
		t.Errorf("expected a reload after expiry, got %d loads", n)
	}
}

func TestGetTableDetails(t *testing.T) {
	c := schema.NewCache(twoConns(), schema.SimulatedLoader{}, nil)
	ctx := context.Background()

	d, err := c.GetTableDetails(ctx, 1, "orders")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if d.Name != "orders" || len(d.Columns) != 5 {
		t.Errorf("unexpected table %+v", d.TableInfo)
	}
	if len(d.Indexes) != 2 || d.Indexes[0].Name != "orders_pkey" || d.Indexes[1].Name != "idx_orders_created_at" {
		t.Errorf("unexpected indexes %+v", d.Indexes)
	}
	if len(d.Constraints) != 1 || d.Constraints[0].Name != "orders_email_unique" || d.Constraints[0].Type != "UNIQUE" {
		t.Errorf("unexpected constraints %+v", d.Constraints)
	}

	var nf *domain.NotFoundError
	if _, err := c.GetTableDetails(ctx, 1, "missing"); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// DriverLoader and Watcher over a real SQLite file
// ─────────────────────────────────────────────────────────────

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	for _, stmt := range []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, email TEXT NOT NULL)`,
		`CREATE TABLE invoices (id INTEGER PRIMARY KEY, customer_id INTEGER REFERENCES customers(id), amount REAL)`,
		`CREATE INDEX idx_invoices_customer ON invoices(customer_id)`,
		`INSERT INTO customers (email) VALUES ('a@x'), ('b@x')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	return path
}

func TestDriverLoader_SQLite(t *testing.T) {
	path := seedSQLite(t)
	backend := query.NewLiveBackend(0, 0)
	defer backend.Close()
	conns := fakeConns{1: {ID: 1, Name: "shop", Engine: domain.EngineSQLite, Database: path, IsActive: true}}
	c := schema.NewCache(conns, schema.NewDriverLoader(backend), nil)
	ctx := context.Background()

	snap, err := c.GetSchema(ctx, 1)
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	customers, ok := snap.Table("customers")
	if !ok || customers.RowCount == nil || *customers.RowCount != 2 {
		t.Errorf("unexpected customers table %+v", customers)
	}

	d, err := c.GetTableDetails(ctx, 1, "invoices")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	found := false
	for _, idx := range d.Indexes {
		if idx.Name == "idx_invoices_customer" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected idx_invoices_customer in %+v", d.Indexes)
	}
}

func TestWatcher_InvalidatesOnFileChange(t *testing.T) {
	path := seedSQLite(t)
	conn := domain.ConnectionDescriptor{ID: 1, Name: "shop", Engine: domain.EngineSQLite, Database: path, IsActive: true}
	loader := &countingLoader{Loader: schema.SimulatedLoader{}}
	c := schema.NewCache(fakeConns{1: conn}, loader, nil)
	ctx := context.Background()

	w, err := schema.NewWatcher(c)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()
	w.HandleConnectionEvent(domain.ConnectionEvent{Kind: domain.ConnectionConnected, Connection: conn})

	_, _ = c.GetSchema(ctx, 1)
	if err := os.WriteFile(path+"-journal", []byte("x"), 0o644); err != nil {
		t.Fatalf("touch: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, _ = c.GetSchema(ctx, 1)
		if loader.loads.Load() >= 2 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("schema was not invalidated after the file changed")
}

// ─────────────────────────────────────────────────────────────
// RedisStore
// ─────────────────────────────────────────────────────────────

func TestRedisStore_Key(t *testing.T) {
	s := schema.NewRedisStore(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), time.Minute)
	if got := s.Key(42); got != "workbench:schema:42" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestRedisStore_RoundTrip(t *testing.T) {
	addr := os.Getenv("WORKBENCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("WORKBENCH_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	s := schema.NewRedisStore(client, time.Minute)
	ctx := context.Background()

	loader := &countingLoader{Loader: schema.SimulatedLoader{}}
	c := schema.NewCache(twoConns(), loader, s)
	_ = s.Delete(ctx, 1)

	first, err := c.GetSchema(ctx, 1)
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	second, err := c.GetSchema(ctx, 1)
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	if loader.loads.Load() != 1 || len(second.Tables) != len(first.Tables) {
		t.Errorf("expected the second read to come from redis")
	}
	_ = s.Delete(ctx, 1)
}
