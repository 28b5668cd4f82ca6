package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"workbench/internal/domain"
	"workbench/internal/history"
	"workbench/internal/query"
	"workbench/internal/resultview"
	"workbench/internal/service"
	"workbench/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Emitters
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "test:event" {
		t.Errorf("expected 'test:event', got %q", m.Events[0].Event)
	}
	if got := m.Names(); got[1] != "test:event2" {
		t.Errorf("expected 'test:event2' last, got %v", got)
	}
}

func TestHub_FanOutAndUnsubscribe(t *testing.T) {
	h := service.NewHub()
	_, a, cancelA := h.Subscribe()
	_, b, cancelB := h.Subscribe()
	defer cancelB()

	h.Emit(context.Background(), "query:succeeded", 1)
	for name, ch := range map[string]<-chan service.Event{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Name != "query:succeeded" || ev.Data != 1 {
				t.Errorf("%s: unexpected event %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: no event delivered", name)
		}
	}

	cancelA()
	cancelA()
	if h.Subscribers() != 1 {
		t.Errorf("expected 1 subscriber, got %d", h.Subscribers())
	}
	if _, ok := <-a; ok {
		t.Error("expected a's channel to be closed")
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := service.NewHub()
	_, _, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.Emit(context.Background(), "x", i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}
}

// ─────────────────────────────────────────────────────────────
// QueryService + ResultService
// ─────────────────────────────────────────────────────────────

type fakeConns map[int64]domain.ConnectionDescriptor

func (f fakeConns) Get(_ context.Context, id int64) (domain.ConnectionDescriptor, error) {
	c, ok := f[id]
	if !ok {
		return c, &domain.NotFoundError{Resource: "connection", ID: id}
	}
	return c, nil
}

func newQueryService(t *testing.T) (*service.QueryService, *service.ResultService, *service.MockEmitter) {
	t.Helper()
	conns := fakeConns{1: {ID: 1, Name: "main", Engine: domain.EnginePostgreSQL, IsActive: true}}
	exec := query.NewExecutor(conns, query.NewSimulatedBackend(1))
	results := service.NewResultService()
	emitter := &service.MockEmitter{}
	return service.NewQueryService(exec, results, emitter), results, emitter
}

func TestQueryService_SuccessNotifiesAndStoresResult(t *testing.T) {
	qs, results, emitter := newQueryService(t)

	res, err := qs.Execute(context.Background(), 1, "SELECT * FROM users")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(emitter.Events) != 1 || emitter.Events[0].Event != service.EventQuerySucceeded {
		t.Fatalf("expected one success event, got %v", emitter.Names())
	}
	payload := emitter.Events[0].Data.(service.QuerySucceeded)
	if payload.Message != "Query executed successfully. 7 rows returned." || payload.RowCount != len(res.Rows) {
		t.Errorf("unexpected payload %+v", payload)
	}

	w, err := results.Window(1, service.WindowRequest{})
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if w.TotalRows != 7 || w.Page != 1 || w.PageSize != resultview.DefaultPageSize || w.TotalPages != 1 {
		t.Errorf("unexpected window %+v", w)
	}
}

func TestQueryService_FailureNotifies(t *testing.T) {
	qs, results, emitter := newQueryService(t)

	if _, err := qs.Execute(context.Background(), 1, "SELECT * FROM nonexistent"); err == nil {
		t.Fatal("expected failure")
	}
	if len(emitter.Events) != 1 || emitter.Events[0].Event != service.EventQueryFailed {
		t.Fatalf("expected one failure event, got %v", emitter.Names())
	}
	if p := emitter.Events[0].Data.(service.QueryFailed); !strings.HasPrefix(p.Message, "Query execution failed:") {
		t.Errorf("unexpected payload %+v", p)
	}
	var nf *domain.NotFoundError
	if _, err := results.Window(1, service.WindowRequest{}); !errors.As(err, &nf) {
		t.Errorf("a failure must not store a result, got %v", err)
	}
}

func TestResultService_WindowSortAndExport(t *testing.T) {
	qs, results, _ := newQueryService(t)
	if _, err := qs.Execute(context.Background(), 1, "SELECT * FROM users"); err != nil {
		t.Fatal(err)
	}

	w, err := results.Window(1, service.WindowRequest{Sort: "id", Dir: resultview.Descending, PageSize: 25})
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if w.Rows[0]["id"] != 7 || w.SortKey != "id" || w.SortDir != resultview.Descending {
		t.Errorf("unexpected sorted window %+v", w)
	}

	var verr *domain.ValidationError
	if _, err := results.Window(1, service.WindowRequest{PageSize: 10}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for page size 10, got %v", err)
	}

	exp, err := results.Export(1, service.FormatCSV)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(exp.Data)), "\n")
	if exp.Filename != "query_results.csv" || len(lines) != 8 || !strings.HasPrefix(lines[1], `"7",`) {
		t.Errorf("unexpected CSV export %q: %v", exp.Filename, lines)
	}
	if exp, err := results.Export(1, service.FormatJSON); err != nil || exp.Filename != "query_results.json" {
		t.Errorf("unexpected JSON export: %v", err)
	}
	if _, err := results.Export(1, "xml"); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for xml, got %v", err)
	}

	results.HandleConnectionEvent(domain.ConnectionEvent{Kind: domain.ConnectionDeleted, Connection: domain.ConnectionDescriptor{ID: 1}})
	var nf *domain.NotFoundError
	if _, err := results.Window(1, service.WindowRequest{}); !errors.As(err, &nf) {
		t.Errorf("expected result dropped after delete, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Retention
// ─────────────────────────────────────────────────────────────

func newLedger(t *testing.T) *history.Ledger {
	t.Helper()
	return history.New(storage.NewHistoryRecords(storage.NewMemoryStore(storage.HistorySchema())))
}

func TestRetention_PrunesOldEntries(t *testing.T) {
	now := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	l := newLedger(t)
	ctx := context.Background()
	ms := int64(5)
	for _, age := range []time.Duration{40 * 24 * time.Hour, 10 * 24 * time.Hour, time.Hour} {
		in := domain.HistoryInput{SQL: "SELECT 1", ConnectionID: 1, ConnectionName: "main", ExecutedAt: now.Add(-age), ExecutionTime: &ms}
		if _, err := l.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	r := service.NewRetention(l, "@daily", 30)
	r.SetClock(func() time.Time { return now })

	n, ran, err := r.RunOnce(ctx)
	if err != nil || !ran || n != 1 {
		t.Fatalf("expected one entry pruned, got %d ran=%v (%v)", n, ran, err)
	}
	if left, _ := l.GetAll(ctx); len(left) != 2 {
		t.Errorf("expected 2 entries left, got %d", len(left))
	}
}

func TestRetention_SkipsOverlappingRuns(t *testing.T) {
	r := service.NewRetention(newLedger(t), "@daily", 30)
	release := service.HoldRetention(r)

	if _, ran, err := r.RunOnce(context.Background()); ran || err != nil {
		t.Errorf("expected the run to be skipped, got ran=%v err=%v", ran, err)
	}
	release()
	if _, ran, _ := r.RunOnce(context.Background()); !ran {
		t.Error("expected a run once the previous one finished")
	}
}

func TestRetention_StopWaitsForRun(t *testing.T) {
	r := service.NewRetention(newLedger(t), "@daily", 30)
	release := service.HoldRetention(r)

	stopped := make(chan struct{})
	go func() {
		r.Stop(context.Background())
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the run finished")
	}

	held := service.HoldRetention(r)
	defer held()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	r.Stop(ctx) // gives up when ctx ends
}

func TestRetention_StartValidatesSchedule(t *testing.T) {
	ctx := context.Background()
	if err := service.NewRetention(newLedger(t), "not a schedule", 30).Start(ctx); err == nil {
		t.Error("expected an invalid schedule to fail")
	}

	r := service.NewRetention(newLedger(t), "@every 1h", 30)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	r.Stop(ctx)

	disabled := service.NewRetention(newLedger(t), "not a schedule", 0)
	if err := disabled.Start(ctx); err != nil {
		t.Errorf("disabled retention must not parse its schedule: %v", err)
	}
}
