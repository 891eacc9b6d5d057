package domain

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for registration persistence.
type Repository interface {
	// Save persists a registration (create or update).
	Save(ctx context.Context, reg *Registration) error

	// FindByID retrieves a registration by its ID. Returns
	// ErrRegistrationNotFound when absent.
	FindByID(ctx context.Context, id uuid.UUID) (*Registration, error)

	// FindLive retrieves the non-cancelled registration of a subject
	// for an event. Returns ErrRegistrationNotFound when none exists.
	FindLive(ctx context.Context, eventID, subjectID uuid.UUID) (*Registration, error)

	// CountSeated counts registrations holding a seat for an event.
	CountSeated(ctx context.Context, eventID uuid.UUID) (int, error)

	// FindWaitlisted retrieves waitlisted registrations for an event
	// in arrival order, oldest first.
	FindWaitlisted(ctx context.Context, eventID uuid.UUID, limit int) ([]*Registration, error)

	// FindLiveByEvent retrieves all non-cancelled registrations for an
	// event.
	FindLiveByEvent(ctx context.Context, eventID uuid.UUID) ([]*Registration, error)
}
