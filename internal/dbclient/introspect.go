package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"workbench/internal/domain"
)

// scanMaps reads every row into a map keyed by lower-cased column name. PRAGMA
// output differs in width between SQLite versions, so it is read by name.
func scanMaps(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, col := range cols {
			m[strings.ToLower(col)] = formatValue(values[i])
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(v)
	}
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		return b == "1" || strings.EqualFold(b, "true") || strings.EqualFold(b, "yes")
	default:
		return false
	}
}

func (c *sqlConnector) queryMaps(ctx context.Context, q string, args ...any) ([]map[string]any, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanMaps(rows)
}

func (c *sqlConnector) Introspect(ctx context.Context) (*domain.SchemaSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var (
		snap *domain.SchemaSnapshot
		err  error
	)
	switch c.driverName {
	case "sqlite":
		snap, err = c.introspectSQLite(ctx)
	default:
		snap, err = c.introspectInfoSchema(ctx)
	}
	if err != nil {
		return nil, err
	}
	snap.LastRefreshed = time.Now()
	return snap, nil
}

// introspectInfoSchema works for MySQL and Postgres via INFORMATION_SCHEMA.
func (c *sqlConnector) introspectInfoSchema(ctx context.Context) (*domain.SchemaSnapshot, error) {
	objects, err := c.queryMaps(ctx, fmt.Sprintf(
		`SELECT table_name AS name, table_type AS kind FROM information_schema.tables
		 WHERE table_schema = %s ORDER BY table_name`, c.schemaExpr()))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	snap := &domain.SchemaSnapshot{Tables: []domain.TableInfo{}, Views: []domain.ViewInfo{}, Procedures: []domain.ProcedureInfo{}}
	for _, o := range objects {
		name := str(o["name"])
		cols, err := c.infoSchemaColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		if strings.EqualFold(str(o["kind"]), "VIEW") {
			snap.Views = append(snap.Views, domain.ViewInfo{Name: name, Columns: cols})
			continue
		}
		snap.Tables = append(snap.Tables, domain.TableInfo{Name: name, Columns: cols})
	}

	procs, err := c.infoSchemaRoutines(ctx)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	snap.Procedures = procs
	return snap, nil
}

func (c *sqlConnector) infoSchemaColumns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	rows, err := c.queryMaps(ctx, fmt.Sprintf(
		`SELECT column_name AS name, data_type AS type, is_nullable AS nullable
		 FROM information_schema.columns
		 WHERE table_schema = %s AND table_name = %s ORDER BY ordinal_position`,
		c.schemaExpr(), c.placeholder(1)), table)
	if err != nil {
		return nil, err
	}

	keys, err := c.queryMaps(ctx, fmt.Sprintf(
		`SELECT kcu.column_name AS name, tc.constraint_type AS kind
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		  AND tc.table_name = kcu.table_name
		 WHERE tc.table_schema = %s AND tc.table_name = %s
		   AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')`,
		c.schemaExpr(), c.placeholder(1)), table)
	if err != nil {
		return nil, err
	}
	pk := map[string]bool{}
	fk := map[string]bool{}
	for _, k := range keys {
		if str(k["kind"]) == "PRIMARY KEY" {
			pk[str(k["name"])] = true
		} else {
			fk[str(k["name"])] = true
		}
	}

	cols := make([]domain.ColumnInfo, 0, len(rows))
	for _, r := range rows {
		name := str(r["name"])
		cols = append(cols, domain.ColumnInfo{
			Name:         name,
			DataType:     str(r["type"]),
			IsPrimaryKey: pk[name],
			IsForeignKey: fk[name],
			Nullable:     truthy(r["nullable"]),
		})
	}
	return cols, nil
}

func (c *sqlConnector) infoSchemaRoutines(ctx context.Context) ([]domain.ProcedureInfo, error) {
	routines, err := c.queryMaps(ctx, fmt.Sprintf(
		`SELECT routine_name AS name, specific_name AS specific FROM information_schema.routines
		 WHERE routine_schema = %s ORDER BY routine_name`, c.schemaExpr()))
	if err != nil {
		return nil, err
	}

	procs := make([]domain.ProcedureInfo, 0, len(routines))
	for _, r := range routines {
		params, err := c.queryMaps(ctx, fmt.Sprintf(
			`SELECT parameter_name AS name, data_type AS type FROM information_schema.parameters
			 WHERE specific_schema = %s AND specific_name = %s AND parameter_name IS NOT NULL
			 ORDER BY ordinal_position`, c.schemaExpr(), c.placeholder(1)), str(r["specific"]))
		if err != nil {
			return nil, err
		}
		p := domain.ProcedureInfo{Name: str(r["name"]), Parameters: []domain.ParameterInfo{}}
		for _, pr := range params {
			p.Parameters = append(p.Parameters, domain.ParameterInfo{Name: str(pr["name"]), DataType: str(pr["type"])})
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// introspectSQLite uses sqlite_master + PRAGMA table_info.
func (c *sqlConnector) introspectSQLite(ctx context.Context) (*domain.SchemaSnapshot, error) {
	objects, err := c.queryMaps(ctx,
		`SELECT name, type FROM sqlite_master
		 WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	snap := &domain.SchemaSnapshot{Tables: []domain.TableInfo{}, Views: []domain.ViewInfo{}, Procedures: []domain.ProcedureInfo{}}
	for _, o := range objects {
		name := str(o["name"])
		cols, err := c.sqliteColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		if str(o["type"]) == "view" {
			snap.Views = append(snap.Views, domain.ViewInfo{Name: name, Columns: cols})
			continue
		}
		t := domain.TableInfo{Name: name, Columns: cols}
		var n int64
		if err := c.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", sqliteIdent(name))).Scan(&n); err == nil {
			t.RowCount = &n
		}
		snap.Tables = append(snap.Tables, t)
	}
	return snap, nil
}

func sqliteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqliteLiteral(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func (c *sqlConnector) sqliteColumns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	info, err := c.queryMaps(ctx, fmt.Sprintf("PRAGMA table_info(%s)", sqliteLiteral(table)))
	if err != nil {
		return nil, err
	}
	fks, err := c.queryMaps(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqliteLiteral(table)))
	if err != nil {
		return nil, err
	}
	fk := map[string]bool{}
	for _, f := range fks {
		fk[str(f["from"])] = true
	}

	cols := make([]domain.ColumnInfo, 0, len(info))
	for _, r := range info {
		name := str(r["name"])
		pk := truthy(r["pk"]) // position within the key, 0 when not part of it
		cols = append(cols, domain.ColumnInfo{
			Name:         name,
			DataType:     str(r["type"]),
			IsPrimaryKey: pk,
			IsForeignKey: fk[name],
			Nullable:     !truthy(r["notnull"]) && !pk,
		})
	}
	return cols, nil
}

func (c *sqlConnector) Indexes(ctx context.Context, table string) ([]domain.IndexInfo, []domain.ConstraintInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch c.driverName {
	case "sqlite":
		return c.sqliteIndexes(ctx, table)
	case "mysql":
		return c.mysqlIndexes(ctx, table)
	default:
		return c.postgresIndexes(ctx, table)
	}
}

func (c *sqlConnector) sqliteIndexes(ctx context.Context, table string) ([]domain.IndexInfo, []domain.ConstraintInfo, error) {
	list, err := c.queryMaps(ctx, fmt.Sprintf("PRAGMA index_list(%s)", sqliteLiteral(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("index list: %w", err)
	}

	indexes := []domain.IndexInfo{}
	constraints := []domain.ConstraintInfo{}
	for _, l := range list {
		name := str(l["name"])
		cols, err := c.queryMaps(ctx, fmt.Sprintf("PRAGMA index_info(%s)", sqliteLiteral(name)))
		if err != nil {
			return nil, nil, fmt.Errorf("index info %s: %w", name, err)
		}
		idx := domain.IndexInfo{Name: name, Type: "INDEX"}
		for _, col := range cols {
			idx.Columns = append(idx.Columns, str(col["name"]))
		}
		switch {
		case str(l["origin"]) == "pk":
			idx.Type = "PRIMARY KEY"
		case truthy(l["unique"]):
			idx.Type = "UNIQUE"
			constraints = append(constraints, domain.ConstraintInfo{Name: name, Type: "UNIQUE", Columns: idx.Columns})
		}
		indexes = append(indexes, idx)
	}

	fks, err := c.queryMaps(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", sqliteLiteral(table)))
	if err != nil {
		return nil, nil, fmt.Errorf("foreign keys: %w", err)
	}
	byID := map[string]*domain.ConstraintInfo{}
	var ids []string
	for _, f := range fks {
		id := str(f["id"])
		ci, ok := byID[id]
		if !ok {
			ci = &domain.ConstraintInfo{Name: fmt.Sprintf("%s_%s_fkey", table, str(f["table"])), Type: "FOREIGN KEY"}
			byID[id] = ci
			ids = append(ids, id)
		}
		ci.Columns = append(ci.Columns, str(f["from"]))
	}
	for _, id := range ids {
		constraints = append(constraints, *byID[id])
	}
	return indexes, constraints, nil
}

func (c *sqlConnector) mysqlIndexes(ctx context.Context, table string) ([]domain.IndexInfo, []domain.ConstraintInfo, error) {
	rows, err := c.queryMaps(ctx,
		`SELECT index_name AS name, column_name AS col, non_unique AS non_unique
		 FROM information_schema.statistics
		 WHERE table_schema = DATABASE() AND table_name = ?
		 ORDER BY index_name, seq_in_index`, table)
	if err != nil {
		return nil, nil, fmt.Errorf("index list: %w", err)
	}
	indexes := groupIndexes(rows, func(r map[string]any) string {
		switch {
		case str(r["name"]) == "PRIMARY":
			return "PRIMARY KEY"
		case !truthy(r["non_unique"]):
			return "UNIQUE"
		default:
			return "INDEX"
		}
	})
	constraints, err := c.infoSchemaConstraints(ctx, table)
	return indexes, constraints, err
}

func (c *sqlConnector) postgresIndexes(ctx context.Context, table string) ([]domain.IndexInfo, []domain.ConstraintInfo, error) {
	rows, err := c.queryMaps(ctx,
		`SELECT i.relname AS name, a.attname AS col, ix.indisunique AS is_unique, ix.indisprimary AS is_primary
		 FROM pg_class t
		 JOIN pg_index ix ON t.oid = ix.indrelid
		 JOIN pg_class i ON i.oid = ix.indexrelid
		 JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 WHERE t.relname = $1 AND n.nspname = current_schema()
		 ORDER BY i.relname, a.attnum`, table)
	if err != nil {
		return nil, nil, fmt.Errorf("index list: %w", err)
	}
	indexes := groupIndexes(rows, func(r map[string]any) string {
		switch {
		case truthy(r["is_primary"]):
			return "PRIMARY KEY"
		case truthy(r["is_unique"]):
			return "UNIQUE"
		default:
			return "INDEX"
		}
	})
	constraints, err := c.infoSchemaConstraints(ctx, table)
	return indexes, constraints, err
}

func groupIndexes(rows []map[string]any, kind func(map[string]any) string) []domain.IndexInfo {
	byName := map[string]*domain.IndexInfo{}
	var names []string
	for _, r := range rows {
		name := str(r["name"])
		idx, ok := byName[name]
		if !ok {
			idx = &domain.IndexInfo{Name: name, Type: kind(r)}
			byName[name] = idx
			names = append(names, name)
		}
		idx.Columns = append(idx.Columns, str(r["col"]))
	}
	out := make([]domain.IndexInfo, 0, len(names))
	for _, n := range names {
		out = append(out, *byName[n])
	}
	return out
}

func (c *sqlConnector) infoSchemaConstraints(ctx context.Context, table string) ([]domain.ConstraintInfo, error) {
	rows, err := c.queryMaps(ctx, fmt.Sprintf(
		`SELECT tc.constraint_name AS name, tc.constraint_type AS kind, kcu.column_name AS col
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		  AND tc.table_name = kcu.table_name
		 WHERE tc.table_schema = %s AND tc.table_name = %s AND tc.constraint_type <> 'PRIMARY KEY'
		 ORDER BY tc.constraint_name, kcu.ordinal_position`, c.schemaExpr(), c.placeholder(1)), table)
	if err != nil {
		return nil, fmt.Errorf("constraints: %w", err)
	}
	byName := map[string]*domain.ConstraintInfo{}
	for _, r := range rows {
		name := str(r["name"])
		ci, ok := byName[name]
		if !ok {
			ci = &domain.ConstraintInfo{Name: name, Type: str(r["kind"])}
			byName[name] = ci
		}
		ci.Columns = append(ci.Columns, str(r["col"]))
	}
	out := make([]domain.ConstraintInfo, 0, len(byName))
	for _, ci := range byName {
		out = append(out, *ci)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
