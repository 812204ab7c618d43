package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawcare-labs/pawcare/internal/domain"
)

// MemoryStore is a Repository kept in process memory. It backs the
// command-line chat and tests.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	events []domain.TriageEvent
	closed bool
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryStore {
	return &MemoryStore{users: make(map[string]domain.User)}
}

var _ Repository = (*MemoryStore)(nil)

func (m *MemoryStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStore) UpsertUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[user.UserID]; ok {
		existing.DisplayName = user.DisplayName
		existing.LastSeenAt = user.LastSeenAt
		existing.UpdatedAt = user.UpdatedAt
		m.users[user.UserID] = existing
		return nil
	}
	m.users[user.UserID] = *user
	return nil
}

func (m *MemoryStore) UpdateLastSeen(_ context.Context, userID string, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.LastSeenAt = lastSeen
		u.UpdatedAt = time.Now()
		m.users[userID] = u
	}
	return nil
}

func (m *MemoryStore) RecordTriageEvent(_ context.Context, event *domain.TriageEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *MemoryStore) ListTriageEvents(_ context.Context, userID, sessionID string, limit int) ([]*domain.TriageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.TriageEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if ev.UserID == userID && ev.SessionID == sessionID {
			out = append(out, &ev)
		}
	}
	// Newest first; insertion order breaks ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteTriageEventsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	var deleted int64
	for _, ev := range m.events {
		if ev.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	m.events = kept
	return deleted, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errClosed
	}
	return ctx.Err()
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
