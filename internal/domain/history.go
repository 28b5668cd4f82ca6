package domain

import "time"

// HistoryEntry is an immutable record of one query execution attempt.
// A non-nil Error means the attempt failed; ExecutionTime is then nil and RowCount 0.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	SQL            string    `json:"sql"`
	ConnectionID   int64     `json:"connectionId"`
	ConnectionName string    `json:"connectionName"`
	ExecutedAt     time.Time `json:"executedAt"`
	ExecutionTime  *int64    `json:"executionTime"`
	RowCount       int       `json:"rowCount"`
	Error          *string   `json:"error"`
}

// Succeeded reports whether the entry records a successful execution.
func (e HistoryEntry) Succeeded() bool {
	return e.Error == nil
}

// HistoryInput is the payload for appending a ledger entry.
type HistoryInput struct {
	SQL            string
	ConnectionID   int64
	ConnectionName string
	ExecutedAt     time.Time
	ExecutionTime  *int64
	RowCount       int
	Error          *string
}

// HistoryStatus filters ledger reads by outcome.
type HistoryStatus string

const (
	HistoryAll     HistoryStatus = ""
	HistorySuccess HistoryStatus = "success"
	HistoryError   HistoryStatus = "error"
)

// HistoryQuery narrows a ledger read. Zero values mean "no filter".
type HistoryQuery struct {
	ConnectionID   int64
	Status         HistoryStatus
	ExecutedBefore time.Time
}
