package domain

import "time"

// StatementKind is the coarse classification of a SQL string, used for dispatch only.
type StatementKind string

const (
	StatementSelect StatementKind = "SELECT"
	StatementInsert StatementKind = "INSERT"
	StatementUpdate StatementKind = "UPDATE"
	StatementDelete StatementKind = "DELETE"
	StatementCreate StatementKind = "CREATE"
	StatementDrop   StatementKind = "DROP"
	StatementShow   StatementKind = "SHOW"
	StatementOther  StatementKind = "OTHER"
)

// Row maps column name to a scalar value. A nil value is SQL NULL; the key is still present.
type Row map[string]any

// QueryResult is the uniform shape of every execution, whatever the statement kind.
// It is created once per execution and not mutated afterwards.
type QueryResult struct {
	Kind          StatementKind `json:"kind"`
	Columns       []string      `json:"columns"`
	Rows          []Row         `json:"data"`
	Message       string        `json:"message,omitempty"`
	AffectedRows  *int64        `json:"affectedRows,omitempty"`
	ExecutionTime int64         `json:"executionTime"` // milliseconds
	Query         string        `json:"query"`
	ConnectionID  int64         `json:"connectionId"`
	ExecutedAt    time.Time     `json:"executedAt"`
}

// RowCount returns the number of rows in the result.
func (r *QueryResult) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ExecutionAttempt describes one execute call that got as far as resolving its connection.
// Exactly one of Result and Err is set.
type ExecutionAttempt struct {
	Connection ConnectionDescriptor
	SQL        string
	Kind       StatementKind
	StartedAt  time.Time
	FinishedAt time.Time
	Result     *QueryResult
	Err        error
}

// Succeeded reports whether the attempt produced a result.
func (a ExecutionAttempt) Succeeded() bool {
	return a.Err == nil && a.Result != nil
}
