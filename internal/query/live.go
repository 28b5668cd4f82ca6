package query

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"workbench/internal/dbclient"
	"workbench/internal/domain"
)

// LiveBackend runs statements through real drivers, keeping one pooled connector
// per connection id.
type LiveBackend struct {
	maxRows int
	timeout time.Duration
	dial    func(domain.ConnectionDescriptor) (dbclient.Connector, error)

	mu         sync.Mutex
	connectors map[int64]dbclient.Connector
}

// NewLiveBackend creates a LiveBackend. maxRows caps read results (0 means no cap);
// timeout bounds each statement (0 means no bound beyond the caller's context).
func NewLiveBackend(maxRows int, timeout time.Duration) *LiveBackend {
	return &LiveBackend{
		maxRows:    maxRows,
		timeout:    timeout,
		dial:       dbclient.NewConnector,
		connectors: make(map[int64]dbclient.Connector),
	}
}

func (b *LiveBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.timeout)
}

// Connector returns the pooled connector for conn, opening one if needed.
func (b *LiveBackend) Connector(conn domain.ConnectionDescriptor) (dbclient.Connector, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.connectors[conn.ID]; ok {
		return c, nil
	}
	c, err := b.dial(conn)
	if err != nil {
		return nil, fmt.Errorf("open db connection: %w", err)
	}
	b.connectors[conn.ID] = c
	return c, nil
}

func (b *LiveBackend) Query(ctx context.Context, conn domain.ConnectionDescriptor, sql string) ([]string, []domain.Row, error) {
	return b.query(ctx, conn, sql, dbclient.Connector.Query)
}

func (b *LiveBackend) QueryReadOnly(ctx context.Context, conn domain.ConnectionDescriptor, sql string) ([]string, []domain.Row, error) {
	return b.query(ctx, conn, sql, dbclient.Connector.QueryReadOnly)
}

type queryFunc func(c dbclient.Connector, ctx context.Context, sql string, maxRows int) (*dbclient.RowSet, error)

func (b *LiveBackend) query(ctx context.Context, conn domain.ConnectionDescriptor, sql string, run queryFunc) ([]string, []domain.Row, error) {
	c, err := b.Connector(conn)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	set, err := run(c, ctx, sql, b.maxRows)
	if err != nil {
		return nil, nil, err
	}
	if set.Truncated {
		log.Printf("[Query] result on connection %d truncated at %d rows", conn.ID, b.maxRows)
	}
	return set.Columns, set.Rows, nil
}

func (b *LiveBackend) Exec(ctx context.Context, conn domain.ConnectionDescriptor, sql string) (int64, error) {
	c, err := b.Connector(conn)
	if err != nil {
		return 0, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()
	return c.Exec(ctx, sql)
}

func (b *LiveBackend) Tables(ctx context.Context, conn domain.ConnectionDescriptor) ([]string, error) {
	c, err := b.Connector(conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	snap, err := c.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(snap.Tables))
	for i, t := range snap.Tables {
		names[i] = t.Name
	}
	return names, nil
}

// Release closes and forgets the connector for id so the next statement reconnects.
func (b *LiveBackend) Release(id int64) {
	b.mu.Lock()
	c, ok := b.connectors[id]
	delete(b.connectors, id)
	b.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// HandleConnectionEvent drops connectors whose descriptor changed or went away.
func (b *LiveBackend) HandleConnectionEvent(ev domain.ConnectionEvent) {
	switch ev.Kind {
	case domain.ConnectionUpdated, domain.ConnectionDeleted, domain.ConnectionDisconnected:
		b.Release(ev.Connection.ID)
	}
}

// Close tears down all active database connectors.
func (b *LiveBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, c := range b.connectors {
		_ = c.Close()
		delete(b.connectors, id)
	}
}
