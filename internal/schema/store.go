package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"workbench/internal/domain"
)

// Store holds schema snapshots keyed by connection id.
type Store interface {
	Get(ctx context.Context, connectionID int64) (*domain.SchemaSnapshot, bool, error)
	Set(ctx context.Context, snap *domain.SchemaSnapshot) error
	Delete(ctx context.Context, connectionID int64) error
}

// ─────────────────────────────────────────────────────────────
// MemoryStore
// ─────────────────────────────────────────────────────────────

type memoryEntry struct {
	snap    *domain.SchemaSnapshot
	expires time.Time
}

// MemoryStore keeps snapshots in process. A zero ttl never expires entries.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]memoryEntry
}

// NewMemoryStore creates a MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[int64]memoryEntry)}
}

// SetClock overrides the clock used for expiry.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*domain.SchemaSnapshot, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	now := s.now()
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !now.Before(e.expires) {
		s.mu.Lock()
		if cur, ok := s.entries[id]; ok && cur.expires.Equal(e.expires) {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.snap, true, nil
}

func (s *MemoryStore) Set(_ context.Context, snap *domain.SchemaSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{snap: snap}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}
	s.entries[snap.ConnectionID] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// ─────────────────────────────────────────────────────────────
// RedisStore
// ─────────────────────────────────────────────────────────────

// DefaultRedisPrefix prefixes every key a RedisStore writes.
const DefaultRedisPrefix = "workbench:schema:"

// RedisStore keeps snapshots in Redis as JSON with a TTL, so several processes
// can share one introspection.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl stores keys without expiry.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: DefaultRedisPrefix, ttl: ttl}
}

// Key returns the Redis key for a connection id.
func (s *RedisStore) Key(connectionID int64) string {
	return fmt.Sprintf("%s%d", s.prefix, connectionID)
}

func (s *RedisStore) Get(ctx context.Context, id int64) (*domain.SchemaSnapshot, bool, error) {
	data, err := s.client.Get(ctx, s.Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", s.Key(id), err)
	}
	var snap domain.SchemaSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decode cached schema %d: %w", id, err)
	}
	return &snap, true, nil
}

func (s *RedisStore) Set(ctx context.Context, snap *domain.SchemaSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode schema %d: %w", snap.ConnectionID, err)
	}
	if err := s.client.Set(ctx, s.Key(snap.ConnectionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.Key(snap.ConnectionID), err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	if err := s.client.Del(ctx, s.Key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.Key(id), err)
	}
	return nil
}
