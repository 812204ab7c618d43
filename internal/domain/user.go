// Package domain contains core domain types for the PawCare application.
package domain

import (
	"strings"
	"time"
)

// User is the anonymous profile attached to a device cookie.
// The triage assistant only ever reads it.
type User struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAnonymousUser builds the profile for a first-time device. The display
// name is derived from the id's tail so it is stable across restarts.
func NewAnonymousUser(userID string, now time.Time) *User {
	name := "Pet parent"
	if len(userID) >= 8 {
		name += " " + strings.ToUpper(userID[len(userID)-8:])
	}
	return &User{
		UserID:      userID,
		DisplayName: name,
		LastSeenAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
