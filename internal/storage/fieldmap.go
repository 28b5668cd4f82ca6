package storage

// FieldMap translates between internal field names and external record field names.
// Each persisted entity has exactly one, applied where records cross the boundary.
type FieldMap struct {
	order      []string
	toExternal map[string]string
	toInternal map[string]string
}

// NewFieldMap builds a FieldMap from internal/external pairs.
func NewFieldMap(pairs ...[2]string) FieldMap {
	m := FieldMap{
		toExternal: make(map[string]string, len(pairs)),
		toInternal: make(map[string]string, len(pairs)),
	}
	for _, p := range pairs {
		m.order = append(m.order, p[0])
		m.toExternal[p[0]] = p[1]
		m.toInternal[p[1]] = p[0]
	}
	return m
}

// External returns the external name for an internal field, or the name unchanged.
func (m FieldMap) External(field string) string {
	if ext, ok := m.toExternal[field]; ok {
		return ext
	}
	return field
}

// Internal returns the internal name for an external field, or the name unchanged.
func (m FieldMap) Internal(field string) string {
	if in, ok := m.toInternal[field]; ok {
		return in
	}
	return field
}

// ToExternal renames every key of an internal field set.
func (m FieldMap) ToExternal(fields map[string]any) Record {
	rec := make(Record, len(fields))
	for k, v := range fields {
		rec[m.External(k)] = v
	}
	return rec
}

// ToInternal renames every key of an external record.
func (m FieldMap) ToInternal(rec Record) map[string]any {
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		fields[m.Internal(k)] = v
	}
	return fields
}

// Schema returns the record schema for table, with every mapped field except the id.
func (m FieldMap) Schema(table string) Schema {
	s := Schema{Table: table}
	for _, in := range m.order {
		if ext := m.toExternal[in]; ext != IDField {
			s.Fields = append(s.Fields, ext)
		}
	}
	return s
}

// ConnectionFields maps connection descriptor fields to the connection record shape.
var ConnectionFields = NewFieldMap(
	[2]string{"id", IDField},
	[2]string{"name", "Name"},
	[2]string{"tags", "Tags"},
	[2]string{"owner", "Owner"},
	[2]string{"type", "type"},
	[2]string{"host", "host"},
	[2]string{"port", "port"},
	[2]string{"database", "database"},
	[2]string{"username", "username"},
	[2]string{"password", "password"},
	[2]string{"isActive", "is_active"},
	[2]string{"lastUsed", "last_used"},
)

// HistoryFields maps history entry fields to the history record shape.
var HistoryFields = NewFieldMap(
	[2]string{"id", IDField},
	[2]string{"name", "Name"},
	[2]string{"tags", "Tags"},
	[2]string{"owner", "Owner"},
	[2]string{"connectionName", "connection_name"},
	[2]string{"sql", "sql"},
	[2]string{"executedAt", "executed_at"},
	[2]string{"executionTime", "execution_time"},
	[2]string{"rowCount", "row_count"},
	[2]string{"error", "error"},
	[2]string{"connectionId", "connection_id"},
)

const (
	ConnectionsTable = "connections"
	HistoryTable     = "query_history"
)

// ConnectionSchema is the connection record schema.
func ConnectionSchema() Schema { return ConnectionFields.Schema(ConnectionsTable) }

// HistorySchema is the history record schema.
func HistorySchema() Schema { return HistoryFields.Schema(HistoryTable) }
