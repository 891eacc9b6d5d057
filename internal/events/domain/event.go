// Package domain holds the event read model the registration and
// reminder contexts operate against. Events are owned by an upstream
// catalog; this engine only reads and locks them.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEventNotFound indicates the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// Event is the slice of the catalog event this engine needs.
type Event struct {
	ID                   uuid.UUID
	Title                string
	StartsAt             time.Time
	EndsAt               *time.Time
	RegistrationDeadline *time.Time
	Capacity             int
	WaitlistEnabled      bool
	NotificationsEnabled bool
	ReminderOffsetsHours []int
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RegistrationOpen reports whether new registrations are still accepted
// at the given instant. The deadline instant itself still accepts.
// Without an explicit deadline, registrations stay open until the event
// starts.
func (e *Event) RegistrationOpen(now time.Time) bool {
	deadline := e.StartsAt
	if e.RegistrationDeadline != nil {
		deadline = *e.RegistrationDeadline
	}
	return !now.After(deadline)
}

// ReminderAt returns the instant a reminder with the given offset
// should fire.
func (e *Event) ReminderAt(offsetHours int) time.Time {
	return e.StartsAt.Add(-time.Duration(offsetHours) * time.Hour)
}

// Repository reads events from the catalog tables.
type Repository interface {
	// FindByID loads an event, returning ErrEventNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Event, error)

	// LockForUpdate loads an event and takes a row lock on it. Must be
	// called inside a transaction; the lock serializes all capacity
	// decisions for the event.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Event, error)
}
