package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"workbench/internal/dbclient"
	"workbench/internal/domain"
)

// ConnectionSource resolves a connection id to its current descriptor.
type ConnectionSource interface {
	Get(ctx context.Context, id int64) (domain.ConnectionDescriptor, error)
}

// Recorder observes every execution attempt that resolved its connection.
// Recorders must not fail the execution; they log their own errors.
type Recorder interface {
	Record(ctx context.Context, attempt domain.ExecutionAttempt)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, attempt domain.ExecutionAttempt)

func (f RecorderFunc) Record(ctx context.Context, attempt domain.ExecutionAttempt) { f(ctx, attempt) }

// Executor classifies statements, runs them on a Backend and reports every attempt
// to its recorders.
type Executor struct {
	conns     ConnectionSource
	backend   Backend
	recorders []Recorder
	now       func() time.Time
	logSQL    bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorders adds recorders, called in order after every attempt.
func WithRecorders(r ...Recorder) Option {
	return func(e *Executor) { e.recorders = append(e.recorders, r...) }
}

// WithClock overrides the clock used for timing and timestamps.
func WithClock(now func() time.Time) Option { return func(e *Executor) { e.now = now } }

// WithSQLLogging logs the text of every statement.
func WithSQLLogging(on bool) Option { return func(e *Executor) { e.logSQL = on } }

// NewExecutor creates an Executor.
func NewExecutor(conns ConnectionSource, backend Backend, opts ...Option) *Executor {
	e := &Executor{conns: conns, backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddRecorder appends a recorder after construction.
func (e *Executor) AddRecorder(r Recorder) {
	e.recorders = append(e.recorders, r)
}

// Execute runs sql against connection connectionID.
//
// Missing input fails with a ValidationError and an unknown id with a NotFoundError;
// neither is recorded. Every other outcome, including running against a connection
// that is not active, is reported to the recorders exactly once.
func (e *Executor) Execute(ctx context.Context, connectionID int64, sql string) (*domain.QueryResult, error) {
	return e.execute(ctx, connectionID, sql, false)
}

// ExecuteReadOnly is Execute for a single SELECT or SHOW statement. Anything else
// fails with a ValidationError before reaching the backend, and SELECTs run
// through Backend.QueryReadOnly.
func (e *Executor) ExecuteReadOnly(ctx context.Context, connectionID int64, sql string) (*domain.QueryResult, error) {
	return e.execute(ctx, connectionID, sql, true)
}

// CheckReadOnly returns the ValidationError ExecuteReadOnly would fail with, or nil.
func CheckReadOnly(sql string) error {
	kind := Classify(sql)
	if kind != domain.StatementSelect && kind != domain.StatementShow {
		return domain.NewValidationError("sql", fmt.Sprintf("%s statements are not allowed in read-only mode", kind))
	}
	if !dbclient.SingleStatement(sql) {
		return domain.NewValidationError("sql", "multiple statements are not allowed in read-only mode")
	}
	return nil
}

func (e *Executor) execute(ctx context.Context, connectionID int64, sql string, readOnly bool) (*domain.QueryResult, error) {
	if connectionID == 0 {
		return nil, domain.NewValidationError("connectionId", "No connection specified")
	}
	if strings.TrimSpace(sql) == "" {
		return nil, domain.NewValidationError("sql", "No query provided")
	}
	if readOnly {
		if err := CheckReadOnly(sql); err != nil {
			return nil, err
		}
	}

	conn, err := e.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	kind := Classify(sql)
	attempt := domain.ExecutionAttempt{Connection: conn, SQL: sql, Kind: kind, StartedAt: e.now()}
	if e.logSQL {
		log.Printf("[Query] %s on %d: %s", kind, conn.ID, sql)
	}

	if !conn.IsActive {
		attempt.FinishedAt = e.now()
		attempt.Err = domain.NewConnectionError(domain.FailureInactive, nil)
		e.record(ctx, attempt)
		return nil, attempt.Err
	}

	var result *domain.QueryResult
	if readOnly && kind == domain.StatementSelect {
		var cols []string
		var rows []domain.Row
		cols, rows, err = e.backend.QueryReadOnly(ctx, conn, sql)
		result = &domain.QueryResult{Columns: cols, Rows: rows}
	} else {
		result, err = e.dispatch(ctx, conn, kind, sql)
	}
	attempt.FinishedAt = e.now()
	if err != nil {
		attempt.Err = &domain.ExecutionError{Cause: err.Error(), Err: err}
		log.Printf("[Query] %s on %d failed: %v", kind, conn.ID, err)
		e.record(ctx, attempt)
		return nil, attempt.Err
	}

	normalizeRows(result)
	result.Kind = kind
	result.ExecutionTime = attempt.FinishedAt.Sub(attempt.StartedAt).Milliseconds()
	result.Query = sql
	result.ConnectionID = conn.ID
	result.ExecutedAt = attempt.FinishedAt
	attempt.Result = result
	e.record(ctx, attempt)
	return result, nil
}

func (e *Executor) record(ctx context.Context, attempt domain.ExecutionAttempt) {
	ctx = context.WithoutCancel(ctx)
	for _, r := range e.recorders {
		r.Record(ctx, attempt)
	}
}

var mutationVerbs = map[domain.StatementKind]string{
	domain.StatementInsert: "inserted",
	domain.StatementUpdate: "updated",
	domain.StatementDelete: "deleted",
}

func (e *Executor) dispatch(ctx context.Context, conn domain.ConnectionDescriptor, kind domain.StatementKind, sql string) (*domain.QueryResult, error) {
	switch kind {
	case domain.StatementSelect:
		cols, rows, err := e.backend.Query(ctx, conn, sql)
		if err != nil {
			return nil, err
		}
		return &domain.QueryResult{Columns: cols, Rows: rows}, nil

	case domain.StatementInsert, domain.StatementUpdate, domain.StatementDelete:
		n, err := e.backend.Exec(ctx, conn, sql)
		if err != nil {
			return nil, err
		}
		return &domain.QueryResult{
			Columns:      []string{"affected_rows"},
			Rows:         []domain.Row{{"affected_rows": n}},
			Message:      fmt.Sprintf("%d row(s) %s successfully", n, mutationVerbs[kind]),
			AffectedRows: &n,
		}, nil

	case domain.StatementCreate, domain.StatementDrop:
		n, err := e.backend.Exec(ctx, conn, sql)
		if err != nil {
			return nil, err
		}
		verb := "created"
		if kind == domain.StatementDrop {
			verb = "dropped"
		}
		return &domain.QueryResult{
			Columns:      []string{"result"},
			Rows:         []domain.Row{{"result": fmt.Sprintf("%s %s successfully", ddlObject(sql), verb)}},
			Message:      fmt.Sprintf("%s statement executed successfully", kind),
			AffectedRows: &n,
		}, nil

	case domain.StatementShow:
		if !strings.Contains(strings.ToLower(sql), "tables") {
			return &domain.QueryResult{
				Columns: []string{"info"},
				Rows:    []domain.Row{{"info": "Command executed successfully"}},
			}, nil
		}
		names, err := e.backend.Tables(ctx, conn)
		if err != nil {
			return nil, err
		}
		rows := make([]domain.Row, len(names))
		for i, n := range names {
			rows[i] = domain.Row{"table_name": n}
		}
		return &domain.QueryResult{Columns: []string{"table_name"}, Rows: rows}, nil

	default:
		n, err := e.backend.Exec(ctx, conn, sql)
		if err != nil {
			return nil, err
		}
		return &domain.QueryResult{
			Columns:      []string{"result"},
			Rows:         []domain.Row{{"result": "Query executed successfully"}},
			Message:      "Statement executed successfully",
			AffectedRows: &n,
		}, nil
	}
}

// normalizeRows makes every row carry every declared column, nil when absent.
func normalizeRows(r *domain.QueryResult) {
	if r.Columns == nil {
		r.Columns = []string{}
	}
	if r.Rows == nil {
		r.Rows = []domain.Row{}
	}
	for i, row := range r.Rows {
		if row == nil {
			row = domain.Row{}
			r.Rows[i] = row
		}
		for _, c := range r.Columns {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
	}
}
