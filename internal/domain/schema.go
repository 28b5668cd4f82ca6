package domain

import "time"

// SchemaSnapshot is the structural metadata of one connection at a point in time.
type SchemaSnapshot struct {
	ConnectionID  int64           `json:"connectionId"`
	Tables        []TableInfo     `json:"tables"`
	Views         []ViewInfo      `json:"views"`
	Procedures    []ProcedureInfo `json:"procedures"`
	LastRefreshed time.Time       `json:"lastRefreshed"`
}

// Table returns the table with the given name.
func (s *SchemaSnapshot) Table(name string) (TableInfo, bool) {
	if s == nil {
		return TableInfo{}, false
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableInfo{}, false
}

// TableInfo describes a table and its ordered columns.
type TableInfo struct {
	Name     string       `json:"name"`
	Columns  []ColumnInfo `json:"columns"`
	RowCount *int64       `json:"rowCount,omitempty"`
}

// PrimaryKey returns the names of the primary-key columns in declared order.
func (t TableInfo) PrimaryKey() []string {
	var pks []string
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pks = append(pks, c.Name)
		}
	}
	return pks
}

// ColumnInfo describes a column.
type ColumnInfo struct {
	Name         string `json:"name"`
	DataType     string `json:"dataType"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	IsForeignKey bool   `json:"isForeignKey,omitempty"`
	Nullable     bool   `json:"nullable"`
}

// ViewInfo describes a view.
type ViewInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
}

// ProcedureInfo describes a stored procedure or function.
type ProcedureInfo struct {
	Name       string          `json:"name"`
	Parameters []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a procedure parameter.
type ParameterInfo struct {
	Name     string `json:"name"`
	DataType string `json:"dataType"`
}

// IndexInfo describes an index on a table.
type IndexInfo struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Type    string   `json:"type"` // PRIMARY KEY, INDEX, UNIQUE
}

// ConstraintInfo describes a table constraint.
type ConstraintInfo struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"` // UNIQUE, FOREIGN KEY, ...
	Columns []string `json:"columns"`
}

// TableDetails is a table together with its indexes and constraints.
type TableDetails struct {
	TableInfo
	Indexes     []IndexInfo      `json:"indexes"`
	Constraints []ConstraintInfo `json:"constraints"`
}
