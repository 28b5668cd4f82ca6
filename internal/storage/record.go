package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// ─────────────────────────────────────────────────────────────
// External record boundary
// ─────────────────────────────────────────────────────────────

// IDField is the identity field of every external record.
const IDField = "Id"

// Record is one row in the external representation, keyed by external field name.
type Record map[string]any

// ID returns the record's identity, or 0 when absent.
func (r Record) ID() int64 {
	id, _ := asInt64(r[IDField])
	return id
}

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func sortedFields(r Record) []string {
	return slices.Sorted(maps.Keys(r))
}

// Schema names a record table and its writable fields (IDField is implicit).
type Schema struct {
	Table  string
	Fields []string
}

func (s Schema) has(field string) bool {
	if field == IDField {
		return true
	}
	for _, f := range s.Fields {
		if f == field {
			return true
		}
	}
	return false
}

func (s Schema) allFields() []string {
	return append([]string{IDField}, s.Fields...)
}

// checkFields returns an error naming the first field that is not part of the schema.
func (s Schema) checkFields(fields []string) error {
	for _, f := range fields {
		if !s.has(f) {
			return fmt.Errorf("unknown field %q on %s", f, s.Table)
		}
	}
	return nil
}

// Operator is a filter comparison supported by every RecordStore.
type Operator string

const (
	OpEqualTo          Operator = "EqualTo"
	OpLessThan         Operator = "LessThan"
	OpHasValue         Operator = "HasValue"
	OpDoesNotHaveValue Operator = "DoesNotHaveValue"
)

// Condition filters records on one field.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// Order sorts records on one field.
type Order struct {
	Field string
	Desc  bool
}

// FetchParams selects, filters and orders records. Empty Fields means all fields.
type FetchParams struct {
	Fields  []string
	Where   []Condition
	OrderBy []Order
}

// FetchResponse is the read envelope: Data on success, Message otherwise.
type FetchResponse struct {
	Success bool
	Data    []Record
	Message string
}

// RecordResult is the outcome of writing one record within a batch.
type RecordResult struct {
	Success bool
	Data    Record
	Errors  []string
	Message string
}

// BatchResponse is the write envelope. Success is true only when every record succeeded;
// Results is index-aligned with the submitted records.
type BatchResponse struct {
	Success bool
	Results []RecordResult
	Message string
}

func newBatchResponse(results []RecordResult) *BatchResponse {
	resp := &BatchResponse{Success: true, Results: results}
	for _, r := range results {
		if !r.Success {
			resp.Success = false
			break
		}
	}
	return resp
}

func failedResult(format string, args ...any) RecordResult {
	msg := fmt.Sprintf(format, args...)
	return RecordResult{Success: false, Errors: []string{msg}, Message: msg}
}

// RecordStore is the external persistence boundary. Writes operate on batches and
// may partially succeed; callers must inspect every result.
type RecordStore interface {
	Fetch(ctx context.Context, params FetchParams) (*FetchResponse, error)
	Create(ctx context.Context, records []Record) (*BatchResponse, error)
	Update(ctx context.Context, records []Record) (*BatchResponse, error)
	Delete(ctx context.Context, ids []int64) (*BatchResponse, error)
}
