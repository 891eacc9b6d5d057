// Package domain implements capacity-bound enrollment with a FIFO
// waitlist.
package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/convenehq/convene/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrAlreadyRegistered    = errors.New("subject already has a live registration for this event")
	ErrDeadlinePassed       = errors.New("registration deadline has passed")
	ErrEventFull            = errors.New("event is at capacity and has no waitlist")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrForbidden            = errors.New("subject may not modify this registration")
	ErrNotWaitlisted        = errors.New("registration is not waitlisted")
	ErrNotCancellable       = errors.New("registration cannot be cancelled")
	ErrAttendanceNotAllowed = errors.New("attendance can only be marked on a confirmed registration")
)

// Status represents the lifecycle state of a registration.
type Status string

const (
	StatusWaitlisted Status = "waitlisted"
	StatusConfirmed  Status = "confirmed"
	StatusPresent    Status = "present"
	StatusAbsent     Status = "absent"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusWaitlisted, StatusConfirmed, StatusPresent, StatusAbsent, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsLive reports whether the registration still binds subject and event.
func (s Status) IsLive() bool {
	return s != StatusCancelled
}

// CountsAgainstCapacity reports whether the status consumes a seat.
// Waitlisted subjects hold no seat; subjects marked absent release
// theirs.
func (s Status) CountsAgainstCapacity() bool {
	return s == StatusConfirmed || s == StatusPresent
}

// Registration binds a subject to an event, either holding a seat or
// waiting for one.
type Registration struct {
	sharedDomain.BaseAggregateRoot
	eventID     uuid.UUID
	subjectID   uuid.UUID
	status      Status
	confirmedAt *time.Time
}

// NewConfirmed creates a registration that immediately holds a seat.
func NewConfirmed(eventID, subjectID uuid.UUID) *Registration {
	reg := &Registration{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		eventID:           eventID,
		subjectID:         subjectID,
		status:            StatusConfirmed,
	}
	confirmedAt := reg.CreatedAt()
	reg.confirmedAt = &confirmedAt
	reg.AddDomainEvent(NewRegistrationConfirmed(reg))
	return reg
}

// NewWaitlisted creates a registration queued for the next free seat.
func NewWaitlisted(eventID, subjectID uuid.UUID) *Registration {
	reg := &Registration{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		eventID:           eventID,
		subjectID:         subjectID,
		status:            StatusWaitlisted,
	}
	reg.AddDomainEvent(NewRegistrationWaitlisted(reg))
	return reg
}

// Rehydrate recreates a registration from persisted state.
func Rehydrate(id, eventID, subjectID uuid.UUID, status Status, confirmedAt *time.Time, createdAt, updatedAt time.Time) *Registration {
	return &Registration{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)),
		eventID:     eventID,
		subjectID:   subjectID,
		status:      status,
		confirmedAt: confirmedAt,
	}
}

// Getters
func (r *Registration) EventID() uuid.UUID      { return r.eventID }
func (r *Registration) SubjectID() uuid.UUID    { return r.subjectID }
func (r *Registration) Status() Status          { return r.status }
func (r *Registration) ConfirmedAt() *time.Time { return r.confirmedAt }

// IsOwnedBy reports whether the given subject owns this registration.
func (r *Registration) IsOwnedBy(subjectID uuid.UUID) bool {
	return r.subjectID == subjectID
}

// Promote moves a waitlisted registration into a confirmed seat.
func (r *Registration) Promote() error {
	if r.status != StatusWaitlisted {
		return ErrNotWaitlisted
	}
	r.status = StatusConfirmed
	now := time.Now()
	r.confirmedAt = &now
	r.Touch()
	r.AddDomainEvent(NewRegistrationPromoted(r))
	return nil
}

// Cancel releases the registration. heldSeat in the emitted event tells
// downstream consumers whether a seat opened up.
func (r *Registration) Cancel() error {
	if r.status == StatusCancelled {
		return ErrNotCancellable
	}
	heldSeat := r.status.CountsAgainstCapacity()
	r.status = StatusCancelled
	r.Touch()
	r.AddDomainEvent(NewRegistrationCancelled(r, heldSeat))
	return nil
}

// MarkPresent records that the subject attended.
func (r *Registration) MarkPresent() error {
	if r.status != StatusConfirmed && r.status != StatusAbsent {
		return ErrAttendanceNotAllowed
	}
	r.status = StatusPresent
	r.Touch()
	r.AddDomainEvent(NewAttendanceMarked(r))
	return nil
}

// MarkAbsent records a no-show. The seat is released, so a waitlisted
// subject can be promoted into it.
func (r *Registration) MarkAbsent() error {
	if r.status != StatusConfirmed && r.status != StatusPresent {
		return ErrAttendanceNotAllowed
	}
	r.status = StatusAbsent
	r.Touch()
	r.AddDomainEvent(NewAttendanceMarked(r))
	return nil
}
