// Package fsm keeps the per-user conversation state of the bot: which flow
// a user is in and what that flow has collected so far.
package fsm

import (
	"context"
	"sync"
	"time"

	"homework_bot/internal/domain"
)

// State names
const (
	StateIdle                  = ""
	StateTaskWaiting           = "task:waiting"
	StateBroadcastContent      = "broadcast:awaiting_content"
	StateBroadcastConfirmation = "broadcast:awaiting_confirmation"
)

// DefaultTTL bounds how long an abandoned flow survives
const DefaultTTL = 24 * time.Hour

// State is what a user's conversation currently holds
type State struct {
	Name    string          `json:"name"`
	Payload *domain.Payload `json:"payload,omitempty"`
}

// Store persists conversation state keyed by user id.
// Get returns the zero State for users without one.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, userID int64, st State) error
	// Take returns the state and clears it in one step
	Take(ctx context.Context, userID int64) (State, error)
	Clear(ctx context.Context, userID int64) error
}

type memEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore is a process-local Store used when Redis is not configured
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[int64]memEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]memEntry),
	}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(userID), nil
}

func (m *MemoryStore) getLocked(userID int64) State {
	e, ok := m.entries[userID]
	if !ok {
		return State{}
	}
	if m.ttl > 0 && m.now().After(e.expiresAt) {
		delete(m.entries, userID)
		return State{}
	}
	return e.state
}

func (m *MemoryStore) Set(_ context.Context, userID int64, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.Name == StateIdle {
		delete(m.entries, userID)
		return nil
	}
	m.entries[userID] = memEntry{state: st, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, userID int64) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.getLocked(userID)
	delete(m.entries, userID)
	return st, nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}
