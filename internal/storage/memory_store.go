package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"workbench/internal/domain"
)

// MemoryStore is an in-process RecordStore. Ids come from a high-water counter and
// are never handed out twice, even after the highest record is deleted.
type MemoryStore struct {
	mu      sync.RWMutex
	schema  Schema
	records map[int64]Record
	nextID  int64
}

// NewMemoryStore creates an empty MemoryStore for the given schema.
func NewMemoryStore(schema Schema) *MemoryStore {
	return &MemoryStore{schema: schema, records: make(map[int64]Record), nextID: 1}
}

// normalizeValue makes memory values look like what the SQLite driver scans back.
func normalizeValue(v any) any {
	switch t := bindValue(v).(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return t
	}
}

func (s *MemoryStore) Fetch(_ context.Context, params FetchParams) (*FetchResponse, error) {
	fields := params.Fields
	if len(fields) == 0 {
		fields = s.schema.allFields()
	}
	if err := s.schema.checkFields(fields); err != nil {
		return &FetchResponse{Success: false, Message: err.Error()}, nil
	}
	for _, c := range params.Where {
		if !s.schema.has(c.Field) {
			return &FetchResponse{Success: false, Message: fmt.Sprintf("unknown filter field %q", c.Field)}, nil
		}
	}
	for _, o := range params.OrderBy {
		if !s.schema.has(o.Field) {
			return &FetchResponse{Success: false, Message: fmt.Sprintf("unknown order field %q", o.Field)}, nil
		}
	}

	s.mu.RLock()
	var matched []Record
	for _, rec := range s.records {
		ok, err := matches(rec, params.Where)
		if err != nil {
			s.mu.RUnlock()
			return &FetchResponse{Success: false, Message: err.Error()}, nil
		}
		if ok {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	order := params.OrderBy
	if len(order) == 0 {
		order = []Order{{Field: IDField}}
	}
	slices.SortStableFunc(matched, func(a, b Record) int {
		for _, o := range order {
			c := domain.CompareValues(a[o.Field], b[o.Field])
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return domain.CompareValues(a[IDField], b[IDField])
	})

	data := make([]Record, len(matched))
	for i, rec := range matched {
		out := make(Record, len(fields))
		for _, f := range fields {
			out[f] = rec[f]
		}
		data[i] = out
	}
	return &FetchResponse{Success: true, Data: data}, nil
}

func matches(rec Record, where []Condition) (bool, error) {
	for _, c := range where {
		v := rec[c.Field]
		var ok bool
		switch c.Operator {
		case OpEqualTo:
			want := normalizeValue(c.Value)
			if want == nil {
				ok = v == nil
			} else {
				ok = v != nil && domain.CompareValues(v, want) == 0
			}
		case OpLessThan:
			ok = v != nil && domain.CompareValues(v, normalizeValue(c.Value)) < 0
		case OpHasValue:
			ok = v != nil && v != ""
		case OpDoesNotHaveValue:
			ok = v == nil || v == ""
		default:
			return false, fmt.Errorf("unsupported operator %q", c.Operator)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *MemoryStore) Create(_ context.Context, records []Record) (*BatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]RecordResult, len(records))
	for i, rec := range records {
		stored := Record{}
		for _, f := range s.schema.Fields {
			stored[f] = nil
		}
		bad := ""
		for f, v := range rec {
			if f == IDField {
				continue
			}
			if !s.schema.has(f) {
				bad = f
				break
			}
			stored[f] = normalizeValue(v)
		}
		if bad != "" {
			results[i] = failedResult("unknown field %q", bad)
			continue
		}
		id := s.nextID
		s.nextID++
		stored[IDField] = id
		s.records[id] = stored
		results[i] = RecordResult{Success: true, Data: stored.clone()}
	}
	return newBatchResponse(results), nil
}

func (s *MemoryStore) Update(_ context.Context, records []Record) (*BatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]RecordResult, len(records))
	for i, rec := range records {
		id := rec.ID()
		existing, ok := s.records[id]
		if !ok {
			results[i] = failedResult("record not found: %d", id)
			continue
		}
		if err := s.schema.checkFields(sortedFields(rec)); err != nil {
			results[i] = failedResult("%v", err)
			continue
		}
		updated := existing.clone()
		for f, v := range rec {
			if f != IDField {
				updated[f] = normalizeValue(v)
			}
		}
		s.records[id] = updated
		results[i] = RecordResult{Success: true, Data: updated.clone()}
	}
	return newBatchResponse(results), nil
}

func (s *MemoryStore) Delete(_ context.Context, ids []int64) (*BatchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]RecordResult, len(ids))
	for i, id := range ids {
		if _, ok := s.records[id]; !ok {
			results[i] = failedResult("record not found: %d", id)
			continue
		}
		delete(s.records, id)
		results[i] = RecordResult{Success: true, Data: Record{IDField: id}}
	}
	return newBatchResponse(results), nil
}
