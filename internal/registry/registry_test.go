package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workbench/internal/domain"
	"workbench/internal/registry"
	"workbench/internal/secret"
	"workbench/internal/storage"
)

func newRegistry(t *testing.T, opts ...registry.Option) (*registry.Registry, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(storage.ConnectionSchema())
	opts = append([]registry.Option{registry.WithProber(registry.NewSimulatedProber(1))}, opts...)
	return registry.New(storage.NewConnectionRecords(store), opts...), store
}

func pgInput(name string) domain.ConnectionInput {
	return domain.ConnectionInput{
		Name:     name,
		Engine:   domain.EnginePostgreSQL,
		Host:     "localhost",
		Database: "app",
		Username: "admin",
		Password: "secret",
	}
}

func mustCreate(t *testing.T, r *registry.Registry, in domain.ConnectionInput) domain.ConnectionDescriptor {
	t.Helper()
	c, err := r.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create %q: %v", in.Name, err)
	}
	return c
}

func activeIDs(t *testing.T, r *registry.Registry) []int64 {
	t.Helper()
	list, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []int64
	for _, c := range list {
		if c.IsActive {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// ─────────────────────────────────────────────────────────────
// Create / validation
// ─────────────────────────────────────────────────────────────

func TestCreate_BlankNameFailsWithoutWriting(t *testing.T) {
	r, _ := newRegistry(t)
	in := pgInput("   ")

	_, err := r.Create(context.Background(), in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "name" {
		t.Errorf("expected field name, got %q", verr.Field)
	}

	list, _ := r.List(context.Background())
	if len(list) != 0 {
		t.Errorf("expected no descriptors, got %d", len(list))
	}
}

func TestCreate_EngineRequirements(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	noHost := pgInput("pg")
	noHost.Host = ""
	if _, err := r.Create(ctx, noHost); err == nil {
		t.Error("expected postgresql without host to fail")
	}

	noDB := pgInput("pg")
	noDB.Database = " "
	if _, err := r.Create(ctx, noDB); err == nil {
		t.Error("expected blank database to fail")
	}

	lite, err := r.Create(ctx, domain.ConnectionInput{Name: "file", Engine: domain.EngineSQLite, Database: "/tmp/app.db"})
	if err != nil {
		t.Fatalf("sqlite without host/username should be valid: %v", err)
	}
	if lite.Port != nil {
		t.Errorf("sqlite should have no port, got %d", *lite.Port)
	}

	pg := mustCreate(t, r, pgInput("pg"))
	if pg.Port == nil || *pg.Port != 5432 {
		t.Errorf("expected default port 5432, got %v", pg.Port)
	}
	if pg.IsActive || pg.LastUsedAt != nil {
		t.Error("new descriptor must be inactive and unused")
	}

	noEngine := pgInput("default")
	noEngine.Engine = ""
	c := mustCreate(t, r, noEngine)
	if c.Engine != domain.EnginePostgreSQL {
		t.Errorf("expected engine to default to postgresql, got %s", c.Engine)
	}
}

func TestCreate_IDsNeverReused(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	a := mustCreate(t, r, pgInput("a"))
	b := mustCreate(t, r, pgInput("b"))
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", a.ID, b.ID)
	}
	if err := r.Delete(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c := mustCreate(t, r, pgInput("c"))
	if c.ID != 3 {
		t.Errorf("expected id 3, got %d", c.ID)
	}
}

func TestCreateMany_PartialSuccess(t *testing.T) {
	r, _ := newRegistry(t)

	res, err := r.CreateMany(context.Background(), []domain.ConnectionInput{
		pgInput("ok-1"),
		{Name: "", Database: "x"},
		pgInput("ok-2"),
	})
	if err != nil {
		t.Fatalf("create many: %v", err)
	}
	if len(res.Succeeded) != 2 || len(res.Failed) != 1 {
		t.Fatalf("expected 2 ok / 1 failed, got %d / %d", len(res.Succeeded), len(res.Failed))
	}
	if res.Positions[0] != 0 || res.Positions[1] != 2 {
		t.Errorf("unexpected positions %v", res.Positions)
	}
	var perr *domain.PersistenceError
	if !errors.As(res.Err("create connections"), &perr) || len(perr.Reasons) != 1 {
		t.Errorf("expected one aggregated reason, got %v", res.Err("create connections"))
	}
}

// ─────────────────────────────────────────────────────────────
// Activation
// ─────────────────────────────────────────────────────────────

func TestConnect_ExactlyOneActive(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	r, _ := newRegistry(t, registry.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	a := mustCreate(t, r, pgInput("a"))
	b := mustCreate(t, r, pgInput("b"))

	if _, err := r.Connect(ctx, a.ID); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	got, err := r.Connect(ctx, b.ID)
	if err != nil {
		t.Fatalf("connect b: %v", err)
	}
	if !got.IsActive || got.LastUsedAt == nil || !got.LastUsedAt.Equal(now) {
		t.Errorf("expected b active with LastUsedAt stamped: %+v", got)
	}

	ids := activeIDs(t, r)
	if len(ids) != 1 || ids[0] != b.ID {
		t.Errorf("expected only %d active, got %v", b.ID, ids)
	}
}

func TestConnect_ConcurrentActivations(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	var ids []int64
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		ids = append(ids, mustCreate(t, r, pgInput(n)).ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := r.Connect(ctx, id); err != nil {
				t.Errorf("connect %d: %v", id, err)
			}
		}(ids[i%len(ids)])
	}
	wg.Wait()

	if got := activeIDs(t, r); len(got) != 1 {
		t.Errorf("expected exactly one active connection, got %v", got)
	}
}

func TestConnect_UnreachableHost(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	good := mustCreate(t, r, pgInput("good"))
	badIn := pgInput("bad")
	badIn.Host = domain.UnreachableHost
	bad := mustCreate(t, r, badIn)

	if _, err := r.Connect(ctx, good.ID); err != nil {
		t.Fatalf("connect good: %v", err)
	}
	_, err := r.Connect(ctx, bad.ID)
	var cerr *domain.ConnectionError
	if !errors.As(err, &cerr) || cerr.Failure != domain.FailureUnreachable {
		t.Fatalf("expected unreachable ConnectionError, got %v", err)
	}
	if cerr.Error() != "Failed to establish connection" {
		t.Errorf("unexpected message %q", cerr.Error())
	}

	ids := activeIDs(t, r)
	if len(ids) != 1 || ids[0] != good.ID {
		t.Errorf("failed connect must not change the active connection, got %v", ids)
	}
}

func TestConnect_NotFound(t *testing.T) {
	r, _ := newRegistry(t)
	_, err := r.Connect(context.Background(), 42)
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestDisconnect_OnlyTarget(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	a := mustCreate(t, r, pgInput("a"))
	b := mustCreate(t, r, pgInput("b"))
	r.Connect(ctx, a.ID)

	if _, err := r.Disconnect(ctx, b.ID); err != nil {
		t.Fatalf("disconnect inactive: %v", err)
	}
	if ids := activeIDs(t, r); len(ids) != 1 || ids[0] != a.ID {
		t.Errorf("disconnecting b must leave a active, got %v", ids)
	}

	if _, err := r.Disconnect(ctx, a.ID); err != nil {
		t.Fatalf("disconnect a: %v", err)
	}
	if ids := activeIDs(t, r); len(ids) != 0 {
		t.Errorf("expected no active connection, got %v", ids)
	}
}

func TestDelete_ActiveClearsActiveStatus(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	a := mustCreate(t, r, pgInput("a"))
	mustCreate(t, r, pgInput("b"))
	r.Connect(ctx, a.ID)

	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ids := activeIDs(t, r); len(ids) != 0 {
		t.Errorf("expected zero active descriptors, got %v", ids)
	}
	if _, ok, _ := r.Active(ctx); ok {
		t.Error("Active should report nothing after deleting the active connection")
	}

	var nf *domain.NotFoundError
	if err := r.Delete(ctx, a.ID); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError on second delete, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────

func TestUpdate_MergesAndValidates(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()
	a := mustCreate(t, r, pgInput("a"))

	name := "renamed"
	got, err := r.Update(ctx, a.ID, domain.ConnectionPatch{Name: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "renamed" || got.Host != "localhost" || got.Database != "app" {
		t.Errorf("unexpected merge result: %+v", got)
	}

	blank := ""
	if _, err := r.Update(ctx, a.ID, domain.ConnectionPatch{Database: &blank}); err == nil {
		t.Error("expected blank database to be rejected")
	}

	var nf *domain.NotFoundError
	if _, err := r.Update(ctx, 99, domain.ConnectionPatch{Name: &name}); !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────
// TestConnection
// ─────────────────────────────────────────────────────────────

func TestTestConnection_Causes(t *testing.T) {
	r, store := newRegistry(t)
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*domain.ConnectionInput)
		want domain.ConnectionFailure
		msg  string
	}{
		{"missing host", func(in *domain.ConnectionInput) { in.Host = "" }, domain.FailureMissingParameters, "Missing required connection parameters"},
		{"refused", func(in *domain.ConnectionInput) { in.Host = domain.UnreachableHost }, domain.FailureHostRefused, "Could not connect to host: Connection refused"},
		{"missing db", func(in *domain.ConnectionInput) { in.Database = registry.MissingDatabase }, domain.FailureDatabaseMissing, "Database does not exist"},
		{"bad creds", func(in *domain.ConnectionInput) { in.Username = registry.InvalidUsername }, domain.FailureBadCredentials, "Authentication failed: Invalid credentials"},
	}
	for _, tc := range cases {
		in := pgInput("probe")
		tc.edit(&in)
		_, err := r.TestConnection(ctx, in)
		var cerr *domain.ConnectionError
		if !errors.As(err, &cerr) {
			t.Errorf("%s: expected ConnectionError, got %v", tc.name, err)
			continue
		}
		if cerr.Failure != tc.want || cerr.Error() != tc.msg {
			t.Errorf("%s: got %s %q", tc.name, cerr.Failure, cerr.Error())
		}
	}

	res, err := r.TestConnection(ctx, pgInput("probe"))
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if !res.Success || res.Version != "14.2 (PostgreSQL)" {
		t.Errorf("unexpected probe result %+v", res)
	}
	if res.ResponseTime < 50 || res.ResponseTime >= 150 {
		t.Errorf("response time out of range: %d", res.ResponseTime)
	}

	resp, _ := store.Fetch(ctx, storage.FetchParams{})
	if len(resp.Data) != 0 {
		t.Error("TestConnection must not write any record")
	}
}

// ─────────────────────────────────────────────────────────────
// Secrets and events
// ─────────────────────────────────────────────────────────────

func TestSecrets_PasswordKeptOutOfRecord(t *testing.T) {
	secrets := secret.NewMemoryStore()
	r, store := newRegistry(t, registry.WithSecrets(secrets))
	ctx := context.Background()

	c := mustCreate(t, r, pgInput("a"))

	resp, _ := store.Fetch(ctx, storage.FetchParams{Fields: []string{"password"}})
	if resp.Data[0]["password"] != "" {
		t.Errorf("expected empty password in record, got %v", resp.Data[0]["password"])
	}
	if pw, _ := secrets.Get("conn:1"); string(pw) != "secret" {
		t.Errorf("expected password in secret store, got %q", pw)
	}

	got, err := r.Get(ctx, c.ID)
	if err != nil || got.Password != "secret" {
		t.Errorf("expected Get to resolve the password, got %q (%v)", got.Password, err)
	}

	r.Delete(ctx, c.ID)
	if pw, _ := secrets.Get("conn:1"); len(pw) != 0 {
		t.Error("expected secret to be removed with the connection")
	}
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	var kinds []domain.ConnectionEventKind
	r.Subscribe(func(ev domain.ConnectionEvent) { kinds = append(kinds, ev.Kind) })

	a := mustCreate(t, r, pgInput("a"))
	b := mustCreate(t, r, pgInput("b"))
	r.Connect(ctx, a.ID)
	r.Connect(ctx, b.ID)
	r.Delete(ctx, b.ID)

	want := []domain.ConnectionEventKind{
		domain.ConnectionConnected,
		domain.ConnectionDisconnected,
		domain.ConnectionConnected,
		domain.ConnectionDeleted,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], kinds[i])
		}
	}
}

// gateProber blocks the first Dial until released.
type gateProber struct {
	*registry.SimulatedProber
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	dials   []string
	mu      sync.Mutex
}

func newGateProber() *gateProber {
	return &gateProber{
		SimulatedProber: registry.NewSimulatedProber(1),
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
}

func (p *gateProber) Dial(ctx context.Context, conn domain.ConnectionDescriptor) error {
	p.mu.Lock()
	p.dials = append(p.dials, conn.Host)
	p.mu.Unlock()
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.entered)
		<-p.release
	}
	return p.SimulatedProber.Dial(ctx, conn)
}

func TestConnect_DialDoesNotBlockOtherWrites(t *testing.T) {
	gate := newGateProber()
	r, _ := newRegistry(t, registry.WithProber(gate))
	ctx := context.Background()
	a := mustCreate(t, r, pgInput("a"))
	b := mustCreate(t, r, pgInput("b"))

	type outcome struct {
		c   domain.ConnectionDescriptor
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		c, err := r.Connect(ctx, b.ID)
		done <- outcome{c, err}
	}()
	<-gate.entered

	// These need the writer lock while b is still being dialed.
	writes := make(chan error, 1)
	go func() {
		if _, err := r.Disconnect(ctx, a.ID); err != nil {
			writes <- err
			return
		}
		host := "db.internal"
		_, err := r.Update(ctx, b.ID, domain.ConnectionPatch{Host: &host})
		writes <- err
	}()
	select {
	case err := <-writes:
		if err != nil {
			t.Fatalf("write during dial: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("registry writes blocked behind a slow dial")
	}

	close(gate.release)
	got := <-done
	if got.err != nil {
		t.Fatalf("connect: %v", got.err)
	}
	if got.c.Host != "db.internal" || !got.c.IsActive {
		t.Errorf("expected the updated descriptor to be activated, got %+v", got.c)
	}
	if len(gate.dials) != 2 || gate.dials[1] != "db.internal" {
		t.Errorf("expected a re-dial with the new settings, got %v", gate.dials)
	}
	if ids := activeIDs(t, r); len(ids) != 1 || ids[0] != b.ID {
		t.Errorf("expected only %d active, got %v", b.ID, ids)
	}
}

func TestConnect_DeletedWhileDialing(t *testing.T) {
	gate := newGateProber()
	r, _ := newRegistry(t, registry.WithProber(gate))
	ctx := context.Background()
	a := mustCreate(t, r, pgInput("a"))

	done := make(chan error, 1)
	go func() {
		_, err := r.Connect(ctx, a.ID)
		done <- err
	}()
	<-gate.entered
	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	close(gate.release)

	var nf *domain.NotFoundError
	if err := <-done; !errors.As(err, &nf) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
	if ids := activeIDs(t, r); len(ids) != 0 {
		t.Errorf("expected nothing active, got %v", ids)
	}
}
