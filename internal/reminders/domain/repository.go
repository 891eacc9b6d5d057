package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for reminder persistence.
type Repository interface {
	// CreateIfAbsent inserts a reminder unless one already exists for
	// the same event, subject, offset and channel. Returns true when a
	// row was created.
	CreateIfAbsent(ctx context.Context, reminder *Reminder) (bool, error)

	// Save updates an existing reminder.
	Save(ctx context.Context, reminder *Reminder) error

	// FindDue retrieves scheduled reminders whose fire time has
	// arrived, oldest first.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*Reminder, error)

	// Claim atomically moves a scheduled reminder into the sending
	// state. Returns false when another dispatcher won the claim.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)

	// CancelPending cancels all pending reminders of a subject for an
	// event and returns how many were cancelled.
	CancelPending(ctx context.Context, eventID, subjectID uuid.UUID) (int, error)

	// FindScheduledByEvent retrieves all scheduled reminders for an
	// event. Reminders already claimed for sending are excluded; they
	// belong to the dispatcher until the attempt resolves.
	FindScheduledByEvent(ctx context.Context, eventID uuid.UUID) ([]*Reminder, error)

	// PurgeSent deletes sent reminders older than the retention period
	// and returns how many were removed.
	PurgeSent(ctx context.Context, olderThan time.Time) (int64, error)

	// FailOverdue parks scheduled reminders whose fire time is older
	// than the cutoff as failed, returning how many were parked. Keeps
	// a backlog after an outage from flooding subjects with stale
	// notifications.
	FailOverdue(ctx context.Context, cutoff time.Time) (int64, error)
}
