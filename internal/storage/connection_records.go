package storage

import (
	"context"
	"fmt"

	"workbench/internal/domain"
)

// ConnectionRecords reads and writes connection descriptors through a RecordStore.
// Field names are translated here and nowhere else.
type ConnectionRecords struct {
	store RecordStore
}

// NewConnectionRecords creates a ConnectionRecords over store.
func NewConnectionRecords(store RecordStore) *ConnectionRecords {
	return &ConnectionRecords{store: store}
}

func connectionToFields(c domain.ConnectionDescriptor) map[string]any {
	var port, lastUsed any
	if c.Port != nil {
		port = int64(*c.Port)
	}
	if c.LastUsedAt != nil {
		lastUsed = FormatTime(*c.LastUsedAt)
	}
	fields := map[string]any{
		"name":     c.Name,
		"tags":     joinTags(c.Tags),
		"owner":    c.Owner,
		"type":     string(c.Engine),
		"host":     c.Host,
		"port":     port,
		"database": c.Database,
		"username": c.Username,
		"password": c.Password,
		"isActive": c.IsActive,
		"lastUsed": lastUsed,
	}
	if c.ID != 0 {
		fields["id"] = c.ID
	}
	return fields
}

func connectionFromRecord(rec Record) (domain.ConnectionDescriptor, error) {
	f := ConnectionFields.ToInternal(rec)
	id, ok := asInt64(f["id"])
	if !ok || id == 0 {
		return domain.ConnectionDescriptor{}, fmt.Errorf("connection record has no id")
	}
	c := domain.ConnectionDescriptor{
		ID:       id,
		Name:     asString(f["name"]),
		Engine:   domain.EngineKind(asString(f["type"])),
		Host:     asString(f["host"]),
		Database: asString(f["database"]),
		Username: asString(f["username"]),
		Password: asString(f["password"]),
		Tags:     splitTags(f["tags"]),
		Owner:    asString(f["owner"]),
		IsActive: asBool(f["isActive"]),
	}
	if f["port"] != nil {
		if p, ok := asInt64(f["port"]); ok {
			port := int(p)
			c.Port = &port
		}
	}
	if t, ok := asTime(f["lastUsed"]); ok {
		c.LastUsedAt = &t
	}
	return c, nil
}

func (r *ConnectionRecords) fetch(ctx context.Context, where ...Condition) ([]domain.ConnectionDescriptor, error) {
	resp, err := r.store.Fetch(ctx, FetchParams{
		Fields: ConnectionSchema().allFields(),
		Where:  where,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch connections: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("fetch connections: %s", resp.Message)
	}
	out := make([]domain.ConnectionDescriptor, 0, len(resp.Data))
	for _, rec := range resp.Data {
		c, err := connectionFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// List returns every descriptor in creation order.
func (r *ConnectionRecords) List(ctx context.Context) ([]domain.ConnectionDescriptor, error) {
	return r.fetch(ctx)
}

// Get returns the descriptor with the given id.
func (r *ConnectionRecords) Get(ctx context.Context, id int64) (domain.ConnectionDescriptor, bool, error) {
	list, err := r.fetch(ctx, Condition{Field: ConnectionFields.External("id"), Operator: OpEqualTo, Value: id})
	if err != nil || len(list) == 0 {
		return domain.ConnectionDescriptor{}, false, err
	}
	return list[0], true, nil
}

// ListActive returns the descriptors flagged active. More than one means the store is inconsistent.
func (r *ConnectionRecords) ListActive(ctx context.Context) ([]domain.ConnectionDescriptor, error) {
	return r.fetch(ctx, Condition{Field: ConnectionFields.External("isActive"), Operator: OpEqualTo, Value: true})
}

// Create writes new descriptors; ids are assigned by the store.
func (r *ConnectionRecords) Create(ctx context.Context, conns []domain.ConnectionDescriptor) (BatchResult[domain.ConnectionDescriptor], error) {
	records := make([]Record, len(conns))
	for i, c := range conns {
		c.ID = 0
		records[i] = ConnectionFields.ToExternal(connectionToFields(c))
	}
	resp, err := r.store.Create(ctx, records)
	if err != nil {
		return BatchResult[domain.ConnectionDescriptor]{}, fmt.Errorf("create connections: %w", err)
	}
	return collectBatch(resp, conns, connectionFromRecord), nil
}

// Update overwrites existing descriptors, matched by id.
func (r *ConnectionRecords) Update(ctx context.Context, conns []domain.ConnectionDescriptor) (BatchResult[domain.ConnectionDescriptor], error) {
	records := make([]Record, len(conns))
	for i, c := range conns {
		records[i] = ConnectionFields.ToExternal(connectionToFields(c))
	}
	resp, err := r.store.Update(ctx, records)
	if err != nil {
		return BatchResult[domain.ConnectionDescriptor]{}, fmt.Errorf("update connections: %w", err)
	}
	return collectBatch(resp, conns, connectionFromRecord), nil
}

// Delete removes descriptors by id.
func (r *ConnectionRecords) Delete(ctx context.Context, ids []int64) (BatchResult[int64], error) {
	resp, err := r.store.Delete(ctx, ids)
	if err != nil {
		return BatchResult[int64]{}, fmt.Errorf("delete connections: %w", err)
	}
	return collectBatch(resp, ids, recordID), nil
}

func recordID(rec Record) (int64, error) {
	id := rec.ID()
	if id == 0 {
		return 0, fmt.Errorf("record has no id")
	}
	return id, nil
}
