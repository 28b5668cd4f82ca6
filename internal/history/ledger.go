package history

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"workbench/internal/domain"
	"workbench/internal/storage"
)

// EventPersistFailed is emitted when an execution could not be written to the ledger.
const EventPersistFailed = "history:persist-failed"

// ErrClearDisabled is returned by ClearAll when bulk deletion is turned off.
var ErrClearDisabled = errors.New("clearing history is disabled")

// Notifier receives warnings the ledger cannot return to a caller.
type Notifier interface {
	Emit(ctx context.Context, event string, data any)
}

// PersistFailure is the payload of EventPersistFailed.
type PersistFailure struct {
	ConnectionID int64  `json:"connectionId"`
	SQL          string `json:"sql"`
	Message      string `json:"message"`
}

// Ledger is the append-only record of query executions.
type Ledger struct {
	records    *storage.HistoryRecords
	notifier   Notifier
	allowClear bool
	now        func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifier sets where persistence warnings go.
func WithNotifier(n Notifier) Option { return func(l *Ledger) { l.notifier = n } }

// WithClearAll enables or disables ClearAll. It is enabled by default.
func WithClearAll(allow bool) Option { return func(l *Ledger) { l.allowClear = allow } }

// WithClock overrides the clock used when an entry carries no timestamp.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// New creates a Ledger over the given history records.
func New(records *storage.HistoryRecords, opts ...Option) *Ledger {
	l := &Ledger{records: records, allowClear: true, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func logFailures[T any](op string, res storage.BatchResult[T]) {
	for _, f := range res.Failed {
		for _, reason := range f.Reasons {
			log.Printf("[History] %s: record rejected: %s", op, reason)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Writes
// ─────────────────────────────────────────────────────────────

// normalize checks that in describes exactly one outcome: a success with a duration
// or a failure with a message.
func (l *Ledger) normalize(in domain.HistoryInput) (domain.HistoryEntry, error) {
	e := domain.HistoryEntry{
		SQL:            in.SQL,
		ConnectionID:   in.ConnectionID,
		ConnectionName: strings.TrimSpace(in.ConnectionName),
		ExecutedAt:     in.ExecutedAt,
		ExecutionTime:  in.ExecutionTime,
		RowCount:       in.RowCount,
		Error:          in.Error,
	}
	if strings.TrimSpace(e.SQL) == "" {
		return e, domain.NewValidationError("sql", "sql is required")
	}
	if e.ConnectionID == 0 {
		return e, domain.NewValidationError("connectionId", "connectionId is required")
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = l.now()
	}

	if e.Error != nil {
		msg := strings.TrimSpace(*e.Error)
		if msg == "" {
			return e, domain.NewValidationError("error", "error message must not be blank")
		}
		if e.ExecutionTime != nil {
			return e, domain.NewValidationError("executionTime", "a failed execution has no execution time")
		}
		e.Error = &msg
		e.RowCount = 0
		return e, nil
	}

	if e.ExecutionTime == nil {
		return e, domain.NewValidationError("executionTime", "a successful execution needs an execution time")
	}
	if *e.ExecutionTime < 0 || e.RowCount < 0 {
		return e, domain.NewValidationError("executionTime", "execution time and row count must not be negative")
	}
	return e, nil
}

// Create validates and appends one entry. The store assigns its id.
func (l *Ledger) Create(ctx context.Context, in domain.HistoryInput) (domain.HistoryEntry, error) {
	e, err := l.normalize(in)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	res, err := l.records.Create(ctx, []domain.HistoryEntry{e})
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	logFailures("create", res)
	if saved, ok := res.First(); ok {
		return saved, nil
	}
	return domain.HistoryEntry{}, res.Err("create history entry")
}

// Record appends the outcome of one execution attempt. Failures are logged and
// emitted as EventPersistFailed, never returned.
func (l *Ledger) Record(ctx context.Context, a domain.ExecutionAttempt) {
	in := domain.HistoryInput{
		SQL:            a.SQL,
		ConnectionID:   a.Connection.ID,
		ConnectionName: a.Connection.Name,
		ExecutedAt:     a.FinishedAt,
	}
	if a.Succeeded() {
		ms := a.Result.ExecutionTime
		in.ExecutionTime = &ms
		in.RowCount = a.Result.RowCount()
		in.ExecutedAt = a.Result.ExecutedAt
	} else {
		msg := "unknown error"
		if a.Err != nil {
			msg = a.Err.Error()
		}
		in.Error = &msg
	}

	if _, err := l.Create(ctx, in); err != nil {
		log.Printf("[History] failed to record execution on connection %d: %v", a.Connection.ID, err)
		if l.notifier != nil {
			l.notifier.Emit(ctx, EventPersistFailed, PersistFailure{
				ConnectionID: a.Connection.ID,
				SQL:          a.SQL,
				Message:      err.Error(),
			})
		}
	}
}

// Delete removes one entry.
func (l *Ledger) Delete(ctx context.Context, id int64) error {
	if _, err := l.Get(ctx, id); err != nil {
		return err
	}
	res, err := l.records.Delete(ctx, []int64{id})
	if err != nil {
		return err
	}
	logFailures("delete", res)
	return res.Err("delete history entry")
}

// ClearAll deletes every entry in one batch and returns how many went.
func (l *Ledger) ClearAll(ctx context.Context) (int, error) {
	if !l.allowClear {
		return 0, ErrClearDisabled
	}
	all, err := l.records.List(ctx, domain.HistoryQuery{})
	if err != nil {
		return 0, err
	}
	return l.deleteEntries(ctx, "clear history", all)
}

// Prune deletes entries executed before cutoff and returns how many went.
func (l *Ledger) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	old, err := l.records.List(ctx, domain.HistoryQuery{ExecutedBefore: cutoff})
	if err != nil {
		return 0, err
	}
	return l.deleteEntries(ctx, "prune history", old)
}

func (l *Ledger) deleteEntries(ctx context.Context, op string, entries []domain.HistoryEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	res, err := l.records.Delete(ctx, ids)
	if err != nil {
		return 0, err
	}
	logFailures(op, res)
	return len(res.Succeeded), res.Err(op)
}

// ─────────────────────────────────────────────────────────────
// Reads (all newest first)
// ─────────────────────────────────────────────────────────────

// Filter narrows List. Zero values mean no filter.
type Filter struct {
	ConnectionID int64
	Status       domain.HistoryStatus
	Term         string
}

// ParseStatus maps "", "success" and "error" to a HistoryStatus.
func ParseStatus(s string) (domain.HistoryStatus, error) {
	switch st := domain.HistoryStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case domain.HistoryAll, domain.HistorySuccess, domain.HistoryError:
		return st, nil
	default:
		return "", domain.NewValidationError("status", "status must be success or error")
	}
}

// List returns the entries matching f.
func (l *Ledger) List(ctx context.Context, f Filter) ([]domain.HistoryEntry, error) {
	entries, err := l.records.List(ctx, domain.HistoryQuery{ConnectionID: f.ConnectionID, Status: f.Status})
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(f.Term))
	if term == "" {
		return entries, nil
	}
	out := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.SQL), term) || strings.Contains(strings.ToLower(e.ConnectionName), term) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAll returns every entry.
func (l *Ledger) GetAll(ctx context.Context) ([]domain.HistoryEntry, error) {
	return l.List(ctx, Filter{})
}

// Get returns one entry.
func (l *Ledger) Get(ctx context.Context, id int64) (domain.HistoryEntry, error) {
	e, ok, err := l.records.Get(ctx, id)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	if !ok {
		return domain.HistoryEntry{}, &domain.NotFoundError{Resource: "history entry", ID: id}
	}
	return e, nil
}

// GetByConnection returns the entries recorded against one connection id.
func (l *Ledger) GetByConnection(ctx context.Context, connectionID int64) ([]domain.HistoryEntry, error) {
	return l.List(ctx, Filter{ConnectionID: connectionID})
}

// GetSuccessful returns the entries that succeeded.
func (l *Ledger) GetSuccessful(ctx context.Context) ([]domain.HistoryEntry, error) {
	return l.List(ctx, Filter{Status: domain.HistorySuccess})
}

// GetErrors returns the entries that failed.
func (l *Ledger) GetErrors(ctx context.Context) ([]domain.HistoryEntry, error) {
	return l.List(ctx, Filter{Status: domain.HistoryError})
}

// Search returns entries whose SQL or connection name contains term, ignoring case.
func (l *Ledger) Search(ctx context.Context, term string) ([]domain.HistoryEntry, error) {
	return l.List(ctx, Filter{Term: term})
}
