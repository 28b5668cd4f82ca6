package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"workbench/internal/domain"
	"workbench/internal/storage"
)

func newSQLiteDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "workbench.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// eachStore runs fn against the SQLite store and the memory store for the same schema.
func eachStore(t *testing.T, schema storage.Schema, fn func(t *testing.T, store storage.RecordStore)) {
	t.Run("sqlite", func(t *testing.T) {
		fn(t, storage.NewTableStore(newSQLiteDB(t), schema))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, storage.NewMemoryStore(schema))
	})
}

func port(p int) *int { return &p }

func pgConn(name string) domain.ConnectionDescriptor {
	return domain.ConnectionDescriptor{
		Name:     name,
		Engine:   domain.EnginePostgreSQL,
		Host:     "localhost",
		Port:     port(5432),
		Database: "app",
		Username: "admin",
		Password: "secret",
		Tags:     []string{"local", "dev"},
	}
}

// ─────────────────────────────────────────────────────────────
// Connection records
// ─────────────────────────────────────────────────────────────

func TestConnectionRecords_CreateAndGet(t *testing.T) {
	eachStore(t, storage.ConnectionSchema(), func(t *testing.T, store storage.RecordStore) {
		ctx := context.Background()
		repo := storage.NewConnectionRecords(store)

		res, err := repo.Create(ctx, []domain.ConnectionDescriptor{pgConn("main")})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		created, ok := res.First()
		if !ok {
			t.Fatalf("expected a created record, failures: %v", res.Reasons())
		}
		if created.ID != 1 {
			t.Errorf("expected id 1, got %d", created.ID)
		}

		got, found, err := repo.Get(ctx, created.ID)
		if err != nil || !found {
			t.Fatalf("get: found=%v err=%v", found, err)
		}
		if got.Name != "main" || got.Engine != domain.EnginePostgreSQL || got.Host != "localhost" {
			t.Errorf("unexpected descriptor: %+v", got)
		}
		if got.Port == nil || *got.Port != 5432 {
			t.Errorf("expected port 5432, got %v", got.Port)
		}
		if got.Password != "secret" {
			t.Errorf("expected password to round-trip")
		}
		if len(got.Tags) != 2 || got.Tags[0] != "local" || got.Tags[1] != "dev" {
			t.Errorf("unexpected tags: %v", got.Tags)
		}
		if got.IsActive || got.LastUsedAt != nil {
			t.Errorf("new descriptor should be inactive and unused: %+v", got)
		}
	})
}

func TestConnectionRecords_UsesExternalFieldNames(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore(storage.ConnectionSchema())
	repo := storage.NewConnectionRecords(store)

	c := pgConn("main")
	c.IsActive = true
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.LastUsedAt = &now
	if _, err := repo.Create(ctx, []domain.ConnectionDescriptor{c}); err != nil {
		t.Fatalf("create: %v", err)
	}

	resp, err := store.Fetch(ctx, storage.FetchParams{Fields: []string{"Name", "is_active", "last_used"}})
	if err != nil || !resp.Success {
		t.Fatalf("fetch: %v %+v", err, resp)
	}
	rec := resp.Data[0]
	if rec["Name"] != "main" {
		t.Errorf("expected Name=main, got %v", rec["Name"])
	}
	if rec["is_active"] != int64(1) {
		t.Errorf("expected is_active=1, got %#v", rec["is_active"])
	}
	if rec["last_used"] != storage.FormatTime(now) {
		t.Errorf("expected last_used=%s, got %v", storage.FormatTime(now), rec["last_used"])
	}
	if _, ok := rec["isActive"]; ok {
		t.Error("internal field name leaked into the external record")
	}

	resp, _ = store.Fetch(ctx, storage.FetchParams{Fields: []string{"isActive"}})
	if resp.Success {
		t.Error("expected fetch by internal field name to fail")
	}
}

func TestConnectionRecords_IDsNeverReused(t *testing.T) {
	eachStore(t, storage.ConnectionSchema(), func(t *testing.T, store storage.RecordStore) {
		ctx := context.Background()
		repo := storage.NewConnectionRecords(store)

		res, _ := repo.Create(ctx, []domain.ConnectionDescriptor{pgConn("a"), pgConn("b")})
		if len(res.Succeeded) != 2 {
			t.Fatalf("expected 2 created, got %d", len(res.Succeeded))
		}
		del, err := repo.Delete(ctx, []int64{2})
		if err != nil || len(del.Failed) != 0 {
			t.Fatalf("delete: %v %v", err, del.Reasons())
		}

		res, _ = repo.Create(ctx, []domain.ConnectionDescriptor{pgConn("c")})
		c, ok := res.First()
		if !ok {
			t.Fatal("expected create to succeed")
		}
		if c.ID != 3 {
			t.Errorf("expected id 3 after deleting id 2, got %d", c.ID)
		}
	})
}

func TestConnectionRecords_UpdateMissingIsPerRecordFailure(t *testing.T) {
	eachStore(t, storage.ConnectionSchema(), func(t *testing.T, store storage.RecordStore) {
		ctx := context.Background()
		repo := storage.NewConnectionRecords(store)

		res, _ := repo.Create(ctx, []domain.ConnectionDescriptor{pgConn("a")})
		a, _ := res.First()
		a.Name = "renamed"
		ghost := pgConn("ghost")
		ghost.ID = 99

		upd, err := repo.Update(ctx, []domain.ConnectionDescriptor{a, ghost})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(upd.Succeeded) != 1 || upd.Succeeded[0].Name != "renamed" {
			t.Errorf("expected renamed record to succeed, got %+v", upd.Succeeded)
		}
		if len(upd.Failed) != 1 || upd.Failed[0].Record.ID != 99 {
			t.Fatalf("expected ghost record to fail, got %+v", upd.Failed)
		}

		var perr *domain.PersistenceError
		if !errors.As(upd.Err("update connection"), &perr) {
			t.Fatal("expected PersistenceError")
		}
	})
}

func TestConnectionRecords_SingleActiveIndex(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewConnectionRecords(storage.NewTableStore(newSQLiteDB(t), storage.ConnectionSchema()))

	a, b := pgConn("a"), pgConn("b")
	a.IsActive, b.IsActive = true, true
	res, err := repo.Create(ctx, []domain.ConnectionDescriptor{a, b})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.Succeeded) != 1 || len(res.Failed) != 1 {
		t.Fatalf("expected the second active record to be rejected, got %d ok / %d failed",
			len(res.Succeeded), len(res.Failed))
	}
	active, _ := repo.ListActive(ctx)
	if len(active) != 1 {
		t.Errorf("expected exactly one active record, got %d", len(active))
	}
}

// ─────────────────────────────────────────────────────────────
// Partial batches
// ─────────────────────────────────────────────────────────────

// partialStore accepts records at even positions and rejects the rest with two reasons.
type partialStore struct {
	storage.RecordStore
}

func (p partialStore) Create(_ context.Context, records []storage.Record) (*storage.BatchResponse, error) {
	resp := &storage.BatchResponse{}
	for i, rec := range records {
		if i%2 == 0 {
			data := storage.Record{}
			for k, v := range rec {
				data[k] = v
			}
			data[storage.IDField] = int64(i + 1)
			resp.Results = append(resp.Results, storage.RecordResult{Success: true, Data: data})
			continue
		}
		resp.Results = append(resp.Results, storage.RecordResult{
			Success: false,
			Errors:  []string{"name rejected", "quota exceeded"},
		})
	}
	return resp, nil
}

func TestCollectBatch_ReportsEveryFailure(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewConnectionRecords(partialStore{})

	res, err := repo.Create(ctx, []domain.ConnectionDescriptor{pgConn("a"), pgConn("b"), pgConn("c"), pgConn("d")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(res.Succeeded) != 2 {
		t.Errorf("expected 2 successes, got %d", len(res.Succeeded))
	}
	if len(res.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(res.Failed))
	}
	if res.Failed[0].Record.Name != "b" || res.Failed[1].Record.Name != "d" {
		t.Errorf("failures not matched to submitted records: %+v", res.Failed)
	}
	if got := res.Reasons(); len(got) != 4 {
		t.Errorf("expected all 4 reasons, got %v", got)
	}
	first, _ := res.First()
	if first.Name != "a" {
		t.Errorf("expected first success to be a, got %q", first.Name)
	}
}

// ─────────────────────────────────────────────────────────────
// History records
// ─────────────────────────────────────────────────────────────

func msPtr(v int64) *int64 { return &v }
func strPtr(s string) *string { return &s }

func TestHistoryRecords_FiltersAndOrder(t *testing.T) {
	eachStore(t, storage.HistorySchema(), func(t *testing.T, store storage.RecordStore) {
		ctx := context.Background()
		repo := storage.NewHistoryRecords(store)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

		entries := []domain.HistoryEntry{
			{SQL: "SELECT 1", ConnectionID: 1, ConnectionName: "one", ExecutedAt: base, ExecutionTime: msPtr(5), RowCount: 1},
			{SQL: "SELECT * FROM nonexistent", ConnectionID: 1, ConnectionName: "one", ExecutedAt: base.Add(time.Minute), Error: strPtr("boom")},
			{SQL: "SELECT 2", ConnectionID: 2, ConnectionName: "two", ExecutedAt: base.Add(2 * time.Minute), ExecutionTime: msPtr(7), RowCount: 1},
			{SQL: "SELECT 3", ConnectionID: 2, ConnectionName: "two", ExecutedAt: base.Add(2 * time.Minute), ExecutionTime: msPtr(9), RowCount: 3},
		}
		res, err := repo.Create(ctx, entries)
		if err != nil || len(res.Failed) != 0 {
			t.Fatalf("create: %v %v", err, res.Reasons())
		}

		all, err := repo.List(ctx, domain.HistoryQuery{})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		wantOrder := []string{"SELECT 3", "SELECT 2", "SELECT * FROM nonexistent", "SELECT 1"}
		for i, e := range all {
			if e.SQL != wantOrder[i] {
				t.Errorf("position %d: expected %q, got %q", i, wantOrder[i], e.SQL)
			}
		}

		failed, _ := repo.List(ctx, domain.HistoryQuery{Status: domain.HistoryError})
		if len(failed) != 1 || failed[0].Error == nil || *failed[0].Error != "boom" {
			t.Errorf("unexpected error entries: %+v", failed)
		}
		if failed[0].ExecutionTime != nil {
			t.Error("failed entry should have no execution time")
		}

		ok, _ := repo.List(ctx, domain.HistoryQuery{Status: domain.HistorySuccess, ConnectionID: 2})
		if len(ok) != 2 {
			t.Errorf("expected 2 successful entries for connection 2, got %d", len(ok))
		}

		old, _ := repo.List(ctx, domain.HistoryQuery{ExecutedBefore: base.Add(time.Minute)})
		if len(old) != 1 || old[0].SQL != "SELECT 1" {
			t.Errorf("expected only the oldest entry, got %+v", old)
		}
	})
}
