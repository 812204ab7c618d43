// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/pawcare-labs/pawcare/internal/domain"
)

var errClosed = errors.New("store is closed")

// Repository defines the interface for persisting user profiles and triage
// audit events. Chat messages are never persisted.
type Repository interface {
	// GetUser retrieves a user by their user ID. It returns nil, nil when
	// the user does not exist.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// RecordTriageEvent appends an audit event.
	RecordTriageEvent(ctx context.Context, event *domain.TriageEvent) error

	// ListTriageEvents returns the newest events for a user session, newest first.
	ListTriageEvents(ctx context.Context, userID, sessionID string, limit int) ([]*domain.TriageEvent, error)

	// DeleteTriageEventsBefore removes events created before the cutoff.
	DeleteTriageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
