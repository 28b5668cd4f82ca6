package service

import (
	"context"
	"fmt"

	"workbench/internal/domain"
	"workbench/internal/query"
)

// Query notification events.
const (
	EventQuerySucceeded = "query:succeeded"
	EventQueryFailed    = "query:failed"
)

// QuerySucceeded is the payload of EventQuerySucceeded.
type QuerySucceeded struct {
	ConnectionID  int64                `json:"connectionId"`
	Kind          domain.StatementKind `json:"kind"`
	RowCount      int                  `json:"rowCount"`
	ExecutionTime int64                `json:"executionTime"`
	Message       string               `json:"message"`
}

// QueryFailed is the payload of EventQueryFailed.
type QueryFailed struct {
	ConnectionID int64  `json:"connectionId"`
	SQL          string `json:"sql"`
	Message      string `json:"message"`
}

// ─────────────────────────────────────────────────────────────
// Query Service: runs statements and keeps the latest result per connection
// ─────────────────────────────────────────────────────────────

// QueryService runs statements through the executor, hands successful results to
// the result service and notifies the emitter of every recorded outcome.
type QueryService struct {
	exec    *query.Executor
	results *ResultService
	emitter EventEmitter
}

// NewQueryService creates a QueryService and registers it as a recorder on exec.
func NewQueryService(exec *query.Executor, results *ResultService, emitter EventEmitter) *QueryService {
	s := &QueryService{exec: exec, results: results, emitter: emitter}
	exec.AddRecorder(s)
	return s
}

// Execute runs sql on connectionID. A successful result becomes the connection's
// current result view.
func (s *QueryService) Execute(ctx context.Context, connectionID int64, sql string) (*domain.QueryResult, error) {
	res, err := s.exec.Execute(ctx, connectionID, sql)
	if err != nil {
		return nil, err
	}
	s.results.Store(connectionID, res)
	return res, nil
}

// ExecuteReadOnly is Execute through the executor's read-only path.
func (s *QueryService) ExecuteReadOnly(ctx context.Context, connectionID int64, sql string) (*domain.QueryResult, error) {
	res, err := s.exec.ExecuteReadOnly(ctx, connectionID, sql)
	if err != nil {
		return nil, err
	}
	s.results.Store(connectionID, res)
	return res, nil
}

// Record emits the notification for one execution attempt.
func (s *QueryService) Record(ctx context.Context, a domain.ExecutionAttempt) {
	if s.emitter == nil {
		return
	}
	if a.Succeeded() {
		n := a.Result.RowCount()
		s.emitter.Emit(ctx, EventQuerySucceeded, QuerySucceeded{
			ConnectionID:  a.Connection.ID,
			Kind:          a.Result.Kind,
			RowCount:      n,
			ExecutionTime: a.Result.ExecutionTime,
			Message:       fmt.Sprintf("Query executed successfully. %d rows returned.", n),
		})
		return
	}
	msg := "Query execution failed"
	if a.Err != nil {
		msg = a.Err.Error()
	}
	s.emitter.Emit(ctx, EventQueryFailed, QueryFailed{ConnectionID: a.Connection.ID, SQL: a.SQL, Message: msg})
}
