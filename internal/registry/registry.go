package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"workbench/internal/domain"
	"workbench/internal/secret"
	"workbench/internal/storage"
)

// Registry owns the connection descriptors and the single active flag.
//
// Writes that can change which descriptor is active (Connect, Disconnect, Update,
// Delete) are serialized by mu, so two activations never interleave.
type Registry struct {
	mu       sync.Mutex
	records  *storage.ConnectionRecords
	prober   Prober
	secrets  secret.SecretStore
	validate *validator.Validate
	now      func() time.Time

	subMu       sync.RWMutex
	subscribers []func(domain.ConnectionEvent)
}

// Option configures a Registry.
type Option func(*Registry)

// WithProber sets the reachability prober. The default is a SimulatedProber.
func WithProber(p Prober) Option { return func(r *Registry) { r.prober = p } }

// WithSecrets keeps passwords in a secret store instead of the connection record.
func WithSecrets(s secret.SecretStore) Option { return func(r *Registry) { r.secrets = s } }

// WithClock overrides the clock used for LastUsedAt.
func WithClock(now func() time.Time) Option { return func(r *Registry) { r.now = now } }

// New creates a Registry over the given connection records.
func New(records *storage.ConnectionRecords, opts ...Option) *Registry {
	r := &Registry{
		records:  records,
		prober:   NewSimulatedProber(time.Now().UnixNano()),
		validate: newValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers fn to receive every successful state change.
func (r *Registry) Subscribe(fn func(domain.ConnectionEvent)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Registry) publish(kind domain.ConnectionEventKind, c domain.ConnectionDescriptor) {
	r.subMu.RLock()
	subs := slices.Clone(r.subscribers)
	r.subMu.RUnlock()

	ev := domain.ConnectionEvent{Kind: kind, Connection: c}
	for _, fn := range subs {
		fn(ev)
	}
}

func secretKey(id int64) string {
	return fmt.Sprintf("conn:%d", id)
}

// forStore strips the password when it lives in the secret store.
func (r *Registry) forStore(c domain.ConnectionDescriptor) domain.ConnectionDescriptor {
	if r.secrets != nil {
		c.Password = ""
	}
	return c
}

func (r *Registry) resolvePassword(c *domain.ConnectionDescriptor) {
	if r.secrets == nil {
		return
	}
	pw, err := r.secrets.Get(secretKey(c.ID))
	if err != nil {
		log.Printf("[Registry] read secret for connection %d: %v", c.ID, err)
		return
	}
	c.Password = string(pw)
}

func (r *Registry) storePassword(id int64, password string) error {
	if r.secrets == nil {
		return nil
	}
	if password == "" {
		return r.secrets.Delete(secretKey(id))
	}
	return r.secrets.Set(secretKey(id), []byte(password))
}

// logFailures logs every rejected record of a batch on its own line.
func logFailures[T any](op string, res storage.BatchResult[T]) {
	for _, f := range res.Failed {
		for _, reason := range f.Reasons {
			log.Printf("[Registry] %s: record rejected: %s", op, reason)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────

// List returns every descriptor in creation order. Passwords held in a secret
// store are not resolved; use Get for that.
func (r *Registry) List(ctx context.Context) ([]domain.ConnectionDescriptor, error) {
	return r.records.List(ctx)
}

// Get returns one descriptor with its password resolved.
func (r *Registry) Get(ctx context.Context, id int64) (domain.ConnectionDescriptor, error) {
	c, ok, err := r.records.Get(ctx, id)
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}
	if !ok {
		return domain.ConnectionDescriptor{}, &domain.NotFoundError{Resource: "connection", ID: id}
	}
	r.resolvePassword(&c)
	return c, nil
}

// Active returns the active descriptor, if any.
func (r *Registry) Active(ctx context.Context) (domain.ConnectionDescriptor, bool, error) {
	active, err := r.records.ListActive(ctx)
	if err != nil || len(active) == 0 {
		return domain.ConnectionDescriptor{}, false, err
	}
	c := active[0]
	r.resolvePassword(&c)
	return c, true, nil
}

// ─────────────────────────────────────────────────────────────
// Create / update / delete
// ─────────────────────────────────────────────────────────────

// Create validates and stores one descriptor. Nothing is written when validation fails.
func (r *Registry) Create(ctx context.Context, in domain.ConnectionInput) (domain.ConnectionDescriptor, error) {
	in = normalizeInput(in)
	if err := validateInput(r.validate, in); err != nil {
		return domain.ConnectionDescriptor{}, err
	}

	res, err := r.write(ctx, []domain.ConnectionDescriptor{descriptorFromInput(in)})
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}
	c, ok := res.First()
	if !ok {
		return domain.ConnectionDescriptor{}, res.Err("create connection")
	}
	return c, nil
}

// CreateMany stores several descriptors in one batch. Invalid inputs are reported as
// failures next to whatever the store rejected; valid ones are still written.
func (r *Registry) CreateMany(ctx context.Context, inputs []domain.ConnectionInput) (storage.BatchResult[domain.ConnectionDescriptor], error) {
	var (
		out      storage.BatchResult[domain.ConnectionDescriptor]
		valid    []domain.ConnectionDescriptor
		validPos []int
	)
	for i, in := range inputs {
		in = normalizeInput(in)
		if err := validateInput(r.validate, in); err != nil {
			out.Failed = append(out.Failed, storage.BatchFailure[domain.ConnectionDescriptor]{
				Record:  descriptorFromInput(in),
				Reasons: []string{err.Error()},
			})
			continue
		}
		valid = append(valid, descriptorFromInput(in))
		validPos = append(validPos, i)
	}
	if len(valid) == 0 {
		return out, nil
	}

	res, err := r.write(ctx, valid)
	if err != nil {
		return out, err
	}
	out.Succeeded = append(out.Succeeded, res.Succeeded...)
	out.Failed = append(out.Failed, res.Failed...)
	for _, p := range res.Positions {
		out.Positions = append(out.Positions, validPos[p])
	}
	return out, nil
}

// write submits new descriptors and files their passwords when a secret store is set.
func (r *Registry) write(ctx context.Context, conns []domain.ConnectionDescriptor) (storage.BatchResult[domain.ConnectionDescriptor], error) {
	stored := make([]domain.ConnectionDescriptor, len(conns))
	for i, c := range conns {
		stored[i] = r.forStore(c)
	}
	res, err := r.records.Create(ctx, stored)
	if err != nil {
		return res, err
	}
	logFailures("create", res)

	// The store echoes what it saved; put the caller's passwords back.
	for i := range res.Succeeded {
		c := &res.Succeeded[i]
		if pos := res.Positions[i]; pos < len(conns) {
			c.Password = conns[pos].Password
		}
		if err := r.storePassword(c.ID, c.Password); err != nil {
			log.Printf("[Registry] store secret for connection %d: %v", c.ID, err)
		}
		log.Printf("[Registry] created connection %d (%s)", c.ID, c.Name)
	}
	return res, nil
}

// Update merges patch onto the descriptor and re-validates it.
func (r *Registry) Update(ctx context.Context, id int64, patch domain.ConnectionPatch) (domain.ConnectionDescriptor, error) {
	r.mu.Lock()
	updated, err := r.update(ctx, id, patch)
	r.mu.Unlock()
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}
	r.publish(domain.ConnectionUpdated, updated)
	return updated, nil
}

func (r *Registry) update(ctx context.Context, id int64, patch domain.ConnectionPatch) (domain.ConnectionDescriptor, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}

	merged := applyPatch(current, patch)
	in := normalizeInput(merged.Input())
	if err := validateInput(r.validate, in); err != nil {
		return domain.ConnectionDescriptor{}, err
	}
	next := descriptorFromInput(in)
	next.ID = current.ID
	next.IsActive = current.IsActive
	next.LastUsedAt = current.LastUsedAt

	res, err := r.records.Update(ctx, []domain.ConnectionDescriptor{r.forStore(next)})
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}
	logFailures("update", res)
	saved, ok := res.First()
	if !ok {
		return domain.ConnectionDescriptor{}, res.Err("update connection")
	}
	if patch.Password != nil {
		if err := r.storePassword(id, next.Password); err != nil {
			log.Printf("[Registry] store secret for connection %d: %v", id, err)
		}
	}
	saved.Password = next.Password
	log.Printf("[Registry] updated connection %d", id)
	return saved, nil
}

// Delete removes a descriptor. Deleting the active descriptor leaves no connection active.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	deleted, err := r.delete(ctx, id)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.publish(domain.ConnectionDeleted, deleted)
	return nil
}

func (r *Registry) delete(ctx context.Context, id int64) (domain.ConnectionDescriptor, error) {
	current, ok, err := r.records.Get(ctx, id)
	if err != nil {
		return current, err
	}
	if !ok {
		return current, &domain.NotFoundError{Resource: "connection", ID: id}
	}

	res, err := r.records.Delete(ctx, []int64{id})
	if err != nil {
		return current, err
	}
	logFailures("delete", res)
	if len(res.Succeeded) == 0 {
		return current, res.Err("delete connection")
	}
	if r.secrets != nil {
		if err := r.secrets.Delete(secretKey(id)); err != nil {
			log.Printf("[Registry] delete secret for connection %d: %v", id, err)
		}
	}
	if current.IsActive {
		log.Printf("[Registry] deleted active connection %d; no connection is active", id)
	} else {
		log.Printf("[Registry] deleted connection %d", id)
	}
	return current, nil
}

// ─────────────────────────────────────────────────────────────
// Reachability and activation
// ─────────────────────────────────────────────────────────────

// TestConnection probes a connection without changing registry state.
func (r *Registry) TestConnection(ctx context.Context, in domain.ConnectionInput) (ProbeResult, error) {
	in = normalizeInput(in)
	if in.Database == "" || (!in.Engine.FileBased() && in.Host == "") {
		return ProbeResult{}, domain.NewConnectionError(domain.FailureMissingParameters, nil)
	}
	res, err := r.prober.Probe(ctx, in)
	if err != nil {
		log.Printf("[Registry] test connection %q failed: %v", in.Name, err)
		return ProbeResult{}, err
	}
	return res, nil
}

// maxConnectAttempts bounds how often Connect re-dials when the descriptor's
// settings change between the dial and the activation.
const maxConnectAttempts = 3

var errSettingsChanged = errors.New("connection settings changed while connecting")

// Connect makes id the single active connection and stamps LastUsedAt.
//
// The database is dialed before mu is taken, so a slow server only delays this
// call. Under mu the descriptor is read again; if it was deleted meanwhile the
// call fails with NotFoundError, and if its settings changed it is dialed again.
// The previous holder is deactivated in a first batch; the target is activated
// only once every deactivation has been stored.
func (r *Registry) Connect(ctx context.Context, id int64) (domain.ConnectionDescriptor, error) {
	for attempt := 1; ; attempt++ {
		dialed, err := r.dialTarget(ctx, id)
		if err != nil {
			return domain.ConnectionDescriptor{}, err
		}

		r.mu.Lock()
		c, previous, err := r.connect(ctx, dialed)
		r.mu.Unlock()
		for _, p := range previous {
			r.publish(domain.ConnectionDisconnected, p)
		}
		if errors.Is(err, errSettingsChanged) && attempt < maxConnectAttempts {
			log.Printf("[Registry] connection %d changed while dialing, retrying", id)
			continue
		}
		if err != nil {
			return domain.ConnectionDescriptor{}, err
		}
		r.publish(domain.ConnectionConnected, c)
		return c, nil
	}
}

// dialTarget resolves id and checks the database answers. It runs without mu.
func (r *Registry) dialTarget(ctx context.Context, id int64) (domain.ConnectionDescriptor, error) {
	target, err := r.Get(ctx, id)
	if err != nil {
		return target, err
	}
	if strings.EqualFold(target.Host, domain.UnreachableHost) {
		return target, domain.NewConnectionError(domain.FailureUnreachable, nil)
	}
	if err := r.prober.Dial(ctx, target); err != nil {
		return target, err
	}
	return target, nil
}

// sameEndpoint reports whether a and b reach the same database as the same user.
func sameEndpoint(a, b domain.ConnectionDescriptor) bool {
	samePort := (a.Port == nil) == (b.Port == nil) && (a.Port == nil || *a.Port == *b.Port)
	return a.Engine == b.Engine && a.Host == b.Host && samePort &&
		a.Database == b.Database && a.Username == b.Username && a.Password == b.Password
}

// connect activates the dialed descriptor and returns it with the descriptors it
// deactivated. Callers hold mu.
func (r *Registry) connect(ctx context.Context, dialed domain.ConnectionDescriptor) (domain.ConnectionDescriptor, []domain.ConnectionDescriptor, error) {
	target, err := r.Get(ctx, dialed.ID)
	if err != nil {
		return target, nil, err
	}
	if !sameEndpoint(target, dialed) {
		return target, nil, errSettingsChanged
	}

	active, err := r.records.ListActive(ctx)
	if err != nil {
		return target, nil, err
	}
	var previous []domain.ConnectionDescriptor
	for _, a := range active {
		if a.ID == target.ID {
			continue
		}
		a.IsActive = false
		previous = append(previous, r.forStore(a))
	}
	var deactivated []domain.ConnectionDescriptor
	if len(previous) > 0 {
		res, err := r.records.Update(ctx, previous)
		if err != nil {
			return target, nil, err
		}
		logFailures("deactivate", res)
		deactivated = res.Succeeded
		if err := res.Err("deactivate connection"); err != nil {
			return target, deactivated, err
		}
	}

	now := r.now()
	target.IsActive = true
	target.LastUsedAt = &now
	res, err := r.records.Update(ctx, []domain.ConnectionDescriptor{r.forStore(target)})
	if err != nil {
		return target, deactivated, err
	}
	logFailures("activate", res)
	saved, ok := res.First()
	if !ok {
		return target, deactivated, res.Err("activate connection")
	}
	saved.Password = target.Password
	log.Printf("[Registry] connected to %d (%s)", saved.ID, saved.Name)
	return saved, deactivated, nil
}

// Disconnect clears the active flag on id only.
func (r *Registry) Disconnect(ctx context.Context, id int64) (domain.ConnectionDescriptor, error) {
	r.mu.Lock()
	c, changed, err := r.disconnect(ctx, id)
	r.mu.Unlock()
	if err != nil {
		return domain.ConnectionDescriptor{}, err
	}
	if changed {
		r.publish(domain.ConnectionDisconnected, c)
	}
	return c, nil
}

func (r *Registry) disconnect(ctx context.Context, id int64) (domain.ConnectionDescriptor, bool, error) {
	target, err := r.Get(ctx, id)
	if err != nil {
		return target, false, err
	}
	if !target.IsActive {
		return target, false, nil
	}
	target.IsActive = false
	res, err := r.records.Update(ctx, []domain.ConnectionDescriptor{r.forStore(target)})
	if err != nil {
		return target, false, err
	}
	logFailures("disconnect", res)
	saved, ok := res.First()
	if !ok {
		return target, false, res.Err("disconnect connection")
	}
	saved.Password = target.Password
	log.Printf("[Registry] disconnected %d", id)
	return saved, true, nil
}
