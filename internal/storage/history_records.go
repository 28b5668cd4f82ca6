package storage

import (
	"context"
	"fmt"
	"strings"

	"workbench/internal/domain"
)

const historyNameLength = 60

// HistoryRecords reads and writes ledger entries through a RecordStore.
type HistoryRecords struct {
	store RecordStore
}

// NewHistoryRecords creates a HistoryRecords over store.
func NewHistoryRecords(store RecordStore) *HistoryRecords {
	return &HistoryRecords{store: store}
}

// historyName is the record's display name: the first line of the SQL, shortened.
func historyName(sql string) string {
	name := strings.TrimSpace(sql)
	if i := strings.IndexAny(name, "\r\n"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if r := []rune(name); len(r) > historyNameLength {
		name = string(r[:historyNameLength-3]) + "..."
	}
	return name
}

func historyToFields(e domain.HistoryEntry) map[string]any {
	var execTime, errMsg any
	if e.ExecutionTime != nil {
		execTime = *e.ExecutionTime
	}
	if e.Error != nil {
		errMsg = *e.Error
	}
	return map[string]any{
		"name":           historyName(e.SQL),
		"tags":           "",
		"owner":          "",
		"connectionName": e.ConnectionName,
		"sql":            e.SQL,
		"executedAt":     FormatTime(e.ExecutedAt),
		"executionTime":  execTime,
		"rowCount":       int64(e.RowCount),
		"error":          errMsg,
		"connectionId":   e.ConnectionID,
	}
}

func historyFromRecord(rec Record) (domain.HistoryEntry, error) {
	f := HistoryFields.ToInternal(rec)
	id, ok := asInt64(f["id"])
	if !ok || id == 0 {
		return domain.HistoryEntry{}, fmt.Errorf("history record has no id")
	}
	connID, _ := asInt64(f["connectionId"])
	rows, _ := asInt64(f["rowCount"])
	e := domain.HistoryEntry{
		ID:             id,
		SQL:            asString(f["sql"]),
		ConnectionID:   connID,
		ConnectionName: asString(f["connectionName"]),
		RowCount:       int(rows),
	}
	if t, ok := asTime(f["executedAt"]); ok {
		e.ExecutedAt = t
	}
	if f["executionTime"] != nil {
		if ms, ok := asInt64(f["executionTime"]); ok {
			e.ExecutionTime = &ms
		}
	}
	if msg := asString(f["error"]); msg != "" {
		e.Error = &msg
	}
	return e, nil
}

// List returns entries matching q, newest first. Entries with equal timestamps are
// ordered by id, newest first.
func (r *HistoryRecords) List(ctx context.Context, q domain.HistoryQuery) ([]domain.HistoryEntry, error) {
	var where []Condition
	if q.ConnectionID != 0 {
		where = append(where, Condition{Field: HistoryFields.External("connectionId"), Operator: OpEqualTo, Value: q.ConnectionID})
	}
	switch q.Status {
	case domain.HistorySuccess:
		where = append(where, Condition{Field: HistoryFields.External("error"), Operator: OpDoesNotHaveValue})
	case domain.HistoryError:
		where = append(where, Condition{Field: HistoryFields.External("error"), Operator: OpHasValue})
	}
	if !q.ExecutedBefore.IsZero() {
		where = append(where, Condition{Field: HistoryFields.External("executedAt"), Operator: OpLessThan, Value: FormatTime(q.ExecutedBefore)})
	}
	return r.fetch(ctx, where)
}

// Get returns the entry with the given id.
func (r *HistoryRecords) Get(ctx context.Context, id int64) (domain.HistoryEntry, bool, error) {
	list, err := r.fetch(ctx, []Condition{{Field: HistoryFields.External("id"), Operator: OpEqualTo, Value: id}})
	if err != nil || len(list) == 0 {
		return domain.HistoryEntry{}, false, err
	}
	return list[0], true, nil
}

func (r *HistoryRecords) fetch(ctx context.Context, where []Condition) ([]domain.HistoryEntry, error) {
	resp, err := r.store.Fetch(ctx, FetchParams{
		Fields: HistorySchema().allFields(),
		Where:  where,
		OrderBy: []Order{
			{Field: HistoryFields.External("executedAt"), Desc: true},
			{Field: HistoryFields.External("id"), Desc: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fetch history: %s", resp.Message)
	}
	out := make([]domain.HistoryEntry, 0, len(resp.Data))
	for _, rec := range resp.Data {
		e, err := historyFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Create appends entries; ids are assigned by the store.
func (r *HistoryRecords) Create(ctx context.Context, entries []domain.HistoryEntry) (BatchResult[domain.HistoryEntry], error) {
	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = HistoryFields.ToExternal(historyToFields(e))
	}
	resp, err := r.store.Create(ctx, records)
	if err != nil {
		return BatchResult[domain.HistoryEntry]{}, fmt.Errorf("create history: %w", err)
	}
	return collectBatch(resp, entries, historyFromRecord), nil
}

// Delete removes entries by id.
func (r *HistoryRecords) Delete(ctx context.Context, ids []int64) (BatchResult[int64], error) {
	resp, err := r.store.Delete(ctx, ids)
	if err != nil {
		return BatchResult[int64]{}, fmt.Errorf("delete history: %w", err)
	}
	return collectBatch(resp, ids, recordID), nil
}
