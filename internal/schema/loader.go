package schema

import (
	"context"
	"fmt"

	"workbench/internal/dbclient"
	"workbench/internal/domain"
)

// Loader reads structural metadata for a connection.
type Loader interface {
	Load(ctx context.Context, conn domain.ConnectionDescriptor) (*domain.SchemaSnapshot, error)
	Details(ctx context.Context, conn domain.ConnectionDescriptor, table domain.TableInfo) ([]domain.IndexInfo, []domain.ConstraintInfo, error)
}

// ─────────────────────────────────────────────────────────────
// SimulatedLoader
// ─────────────────────────────────────────────────────────────

// SimulatedLoader serves the same fixture schema to every connection.
type SimulatedLoader struct{}

func (SimulatedLoader) Load(ctx context.Context, _ domain.ConnectionDescriptor) (*domain.SchemaSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fixtureSchema(), nil
}

// Details synthesizes a primary key index, a created_at index and an email
// unique constraint named after the table.
func (SimulatedLoader) Details(ctx context.Context, _ domain.ConnectionDescriptor, t domain.TableInfo) ([]domain.IndexInfo, []domain.ConstraintInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	indexes := []domain.IndexInfo{
		{Name: t.Name + "_pkey", Columns: []string{"id"}, Type: "PRIMARY KEY"},
		{Name: "idx_" + t.Name + "_created_at", Columns: []string{"created_at"}, Type: "INDEX"},
	}
	constraints := []domain.ConstraintInfo{
		{Name: t.Name + "_email_unique", Type: "UNIQUE", Columns: []string{"email"}},
	}
	return indexes, constraints, nil
}

func col(name, dataType string, pk, nullable bool) domain.ColumnInfo {
	return domain.ColumnInfo{Name: name, DataType: dataType, IsPrimaryKey: pk, Nullable: nullable}
}

func fk(name, dataType string) domain.ColumnInfo {
	return domain.ColumnInfo{Name: name, DataType: dataType, IsForeignKey: true}
}

func count(n int64) *int64 { return &n }

func fixtureSchema() *domain.SchemaSnapshot {
	return &domain.SchemaSnapshot{
		Tables: []domain.TableInfo{
			{
				Name: "users",
				Columns: []domain.ColumnInfo{
					col("id", "INTEGER", true, false),
					col("name", "VARCHAR(255)", false, false),
					col("email", "VARCHAR(255)", false, false),
					col("created_at", "TIMESTAMP", false, false),
					col("updated_at", "TIMESTAMP", false, true),
				},
				RowCount: count(1250),
			},
			{
				Name: "products",
				Columns: []domain.ColumnInfo{
					col("id", "INTEGER", true, false),
					col("name", "VARCHAR(255)", false, false),
					col("price", "DECIMAL(10,2)", false, false),
					col("description", "TEXT", false, true),
					fk("category_id", "INTEGER"),
				},
				RowCount: count(850),
			},
			{
				Name: "orders",
				Columns: []domain.ColumnInfo{
					col("id", "INTEGER", true, false),
					fk("user_id", "INTEGER"),
					col("total", "DECIMAL(10,2)", false, false),
					col("status", "VARCHAR(50)", false, false),
					col("order_date", "TIMESTAMP", false, false),
				},
				RowCount: count(3420),
			},
		},
		Views: []domain.ViewInfo{
			{
				Name: "user_orders_view",
				Columns: []domain.ColumnInfo{
					{Name: "user_name", DataType: "VARCHAR(255)"},
					{Name: "order_count", DataType: "INTEGER"},
					{Name: "total_spent", DataType: "DECIMAL(10,2)"},
				},
			},
		},
		Procedures: []domain.ProcedureInfo{
			{Name: "get_user_stats", Parameters: []domain.ParameterInfo{{Name: "user_id", DataType: "INTEGER"}}},
		},
	}
}

// ─────────────────────────────────────────────────────────────
// DriverLoader
// ─────────────────────────────────────────────────────────────

// ConnectorSource hands out pooled database connectors.
type ConnectorSource interface {
	Connector(conn domain.ConnectionDescriptor) (dbclient.Connector, error)
}

// DriverLoader introspects the live database behind a connection.
type DriverLoader struct {
	connectors ConnectorSource
}

// NewDriverLoader creates a DriverLoader that borrows connectors from src.
func NewDriverLoader(src ConnectorSource) *DriverLoader {
	return &DriverLoader{connectors: src}
}

func (l *DriverLoader) Load(ctx context.Context, conn domain.ConnectionDescriptor) (*domain.SchemaSnapshot, error) {
	c, err := l.connectors.Connector(conn)
	if err != nil {
		return nil, err
	}
	snap, err := c.Introspect(ctx)
	if err != nil {
		return nil, fmt.Errorf("introspect connection %d: %w", conn.ID, err)
	}
	return snap, nil
}

func (l *DriverLoader) Details(ctx context.Context, conn domain.ConnectionDescriptor, t domain.TableInfo) ([]domain.IndexInfo, []domain.ConstraintInfo, error) {
	c, err := l.connectors.Connector(conn)
	if err != nil {
		return nil, nil, err
	}
	indexes, constraints, err := c.Indexes(ctx, t.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("read indexes of %s: %w", t.Name, err)
	}
	return indexes, constraints, nil
}
