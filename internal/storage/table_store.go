package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// TableStore is a RecordStore over one SQLite table whose columns carry the
// external field names.
type TableStore struct {
	db     *DB
	schema Schema
}

// NewTableStore creates a TableStore for the given schema.
func NewTableStore(db *DB, schema Schema) *TableStore {
	return &TableStore{db: db, schema: schema}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *TableStore) Fetch(ctx context.Context, params FetchParams) (*FetchResponse, error) {
	fields := params.Fields
	if len(fields) == 0 {
		fields = s.schema.allFields()
	}
	if err := s.schema.checkFields(fields); err != nil {
		return &FetchResponse{Success: false, Message: err.Error()}, nil
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f)
	}

	var (
		where []string
		args  []any
	)
	for _, c := range params.Where {
		if !s.schema.has(c.Field) {
			return &FetchResponse{Success: false, Message: fmt.Sprintf("unknown filter field %q", c.Field)}, nil
		}
		col := quoteIdent(c.Field)
		switch c.Operator {
		case OpEqualTo:
			if c.Value == nil {
				where = append(where, col+" IS NULL")
			} else {
				where = append(where, col+" = ?")
				args = append(args, bindValue(c.Value))
			}
		case OpLessThan:
			where = append(where, col+" < ?")
			args = append(args, bindValue(c.Value))
		case OpHasValue:
			where = append(where, fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", col, col))
		case OpDoesNotHaveValue:
			where = append(where, fmt.Sprintf("(%s IS NULL OR %s = '')", col, col))
		default:
			return &FetchResponse{Success: false, Message: fmt.Sprintf("unsupported operator %q", c.Operator)}, nil
		}
	}

	var order []string
	for _, o := range params.OrderBy {
		if !s.schema.has(o.Field) {
			return &FetchResponse{Success: false, Message: fmt.Sprintf("unknown order field %q", o.Field)}, nil
		}
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		order = append(order, quoteIdent(o.Field)+" "+dir)
	}
	if len(order) == 0 {
		order = append(order, quoteIdent(IDField)+" ASC")
	}

	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(s.schema.Table))
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + strings.Join(order, ", ")

	rows, err := s.db.Conn().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.schema.Table, err)
	}
	defer rows.Close()

	var data []Record
	for rows.Next() {
		rec, err := scanRecord(rows, fields)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", s.schema.Table, err)
		}
		data = append(data, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.schema.Table, err)
	}
	return &FetchResponse{Success: true, Data: data}, nil
}

func scanRecord(rows *sql.Rows, fields []string) (Record, error) {
	values := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	rec := make(Record, len(fields))
	for i, f := range fields {
		if b, ok := values[i].([]byte); ok {
			rec[f] = string(b)
			continue
		}
		rec[f] = values[i]
	}
	return rec, nil
}

func (s *TableStore) Create(ctx context.Context, records []Record) (*BatchResponse, error) {
	results := make([]RecordResult, len(records))
	for i, rec := range records {
		results[i] = s.insert(ctx, rec)
	}
	return newBatchResponse(results), nil
}

func (s *TableStore) insert(ctx context.Context, rec Record) RecordResult {
	var (
		cols   []string
		marks  []string
		args   []any
		fields = sortedFields(rec)
	)
	for _, f := range fields {
		if f == IDField {
			continue
		}
		if !s.schema.has(f) {
			return failedResult("unknown field %q", f)
		}
		cols = append(cols, quoteIdent(f))
		marks = append(marks, "?")
		args = append(args, bindValue(rec[f]))
	}
	if len(cols) == 0 {
		return failedResult("record has no fields")
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(s.schema.Table), strings.Join(cols, ", "), strings.Join(marks, ", "))
	res, err := s.db.Conn().ExecContext(ctx, q, args...)
	if err != nil {
		return failedResult("insert failed: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return failedResult("insert failed: %v", err)
	}
	return s.reload(ctx, id)
}

func (s *TableStore) Update(ctx context.Context, records []Record) (*BatchResponse, error) {
	results := make([]RecordResult, len(records))
	for i, rec := range records {
		results[i] = s.update(ctx, rec)
	}
	return newBatchResponse(results), nil
}

func (s *TableStore) update(ctx context.Context, rec Record) RecordResult {
	id := rec.ID()
	if id == 0 {
		return failedResult("record has no %s", IDField)
	}

	var (
		sets []string
		args []any
	)
	for _, f := range sortedFields(rec) {
		if f == IDField {
			continue
		}
		if !s.schema.has(f) {
			return failedResult("unknown field %q", f)
		}
		sets = append(sets, quoteIdent(f)+" = ?")
		args = append(args, bindValue(rec[f]))
	}
	if len(sets) == 0 {
		return s.reload(ctx, id)
	}
	args = append(args, id)

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		quoteIdent(s.schema.Table), strings.Join(sets, ", "), quoteIdent(IDField))
	res, err := s.db.Conn().ExecContext(ctx, q, args...)
	if err != nil {
		return failedResult("update failed: %v", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return failedResult("record not found: %d", id)
	}
	return s.reload(ctx, id)
}

func (s *TableStore) Delete(ctx context.Context, ids []int64) (*BatchResponse, error) {
	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(s.schema.Table), quoteIdent(IDField))
	results := make([]RecordResult, len(ids))
	for i, id := range ids {
		res, err := s.db.Conn().ExecContext(ctx, q, id)
		if err != nil {
			results[i] = failedResult("delete failed: %v", err)
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			results[i] = failedResult("record not found: %d", id)
			continue
		}
		results[i] = RecordResult{Success: true, Data: Record{IDField: id}}
	}
	return newBatchResponse(results), nil
}

func (s *TableStore) reload(ctx context.Context, id int64) RecordResult {
	fields := s.schema.allFields()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(cols, ", "), quoteIdent(s.schema.Table), quoteIdent(IDField))

	rows, err := s.db.Conn().QueryContext(ctx, q, id)
	if err != nil {
		return failedResult("reload failed: %v", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return failedResult("reload failed: %v", err)
		}
		return failedResult("record not found: %d", id)
	}
	rec, err := scanRecord(rows, fields)
	if err != nil {
		return failedResult("reload failed: %v", err)
	}
	return RecordResult{Success: true, Data: rec}
}
