package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the transport that shows notifications
// ─────────────────────────────────────────────────────────────

// EventEmitter publishes notifications (query outcomes, ledger warnings) to
// whatever surface displays them. Hub is the production implementation;
// MockEmitter records calls for tests.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Names returns the recorded event names in order.
func (m *MockEmitter) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Event
	}
	return out
}

// ─────────────────────────────────────────────────────────────
// Hub: fans events out to live subscribers (the SSE stream)
// ─────────────────────────────────────────────────────────────

// Event is one notification delivered to hub subscribers.
type Event struct {
	Name string    `json:"event"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

const subscriberBuffer = 32

// Hub is an EventEmitter that delivers every event to each subscriber.
// A subscriber that falls behind loses events rather than blocking Emit.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Event)}
}

// Subscribe registers a subscriber and returns its id, its channel and a func that
// unsubscribes and closes the channel.
func (h *Hub) Subscribe() (string, <-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return id, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Emit(_ context.Context, event string, data any) {
	ev := Event{Name: event, Data: data, At: time.Now().UTC()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
