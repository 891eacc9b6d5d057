package domain

import (
	sharedDomain "github.com/convenehq/convene/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Registration"

// RegistrationConfirmed is emitted when a subject gets a seat directly.
type RegistrationConfirmed struct {
	sharedDomain.BaseEvent
	RegistrationID uuid.UUID `json:"registration_id"`
	TargetEventID  uuid.UUID `json:"event_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
}

// NewRegistrationConfirmed creates a RegistrationConfirmed event.
func NewRegistrationConfirmed(r *Registration) *RegistrationConfirmed {
	return &RegistrationConfirmed{
		BaseEvent:      sharedDomain.NewBaseEvent(r.ID(), aggregateType, "registration.confirmed"),
		RegistrationID: r.ID(),
		TargetEventID:  r.EventID(),
		SubjectID:      r.SubjectID(),
	}
}

// RegistrationWaitlisted is emitted when a subject is queued for a seat.
type RegistrationWaitlisted struct {
	sharedDomain.BaseEvent
	RegistrationID uuid.UUID `json:"registration_id"`
	TargetEventID  uuid.UUID `json:"event_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
}

// NewRegistrationWaitlisted creates a RegistrationWaitlisted event.
func NewRegistrationWaitlisted(r *Registration) *RegistrationWaitlisted {
	return &RegistrationWaitlisted{
		BaseEvent:      sharedDomain.NewBaseEvent(r.ID(), aggregateType, "registration.waitlisted"),
		RegistrationID: r.ID(),
		TargetEventID:  r.EventID(),
		SubjectID:      r.SubjectID(),
	}
}

// RegistrationPromoted is emitted when a waitlisted subject takes a
// freed seat.
type RegistrationPromoted struct {
	sharedDomain.BaseEvent
	RegistrationID uuid.UUID `json:"registration_id"`
	TargetEventID  uuid.UUID `json:"event_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
}

// NewRegistrationPromoted creates a RegistrationPromoted event.
func NewRegistrationPromoted(r *Registration) *RegistrationPromoted {
	return &RegistrationPromoted{
		BaseEvent:      sharedDomain.NewBaseEvent(r.ID(), aggregateType, "registration.promoted"),
		RegistrationID: r.ID(),
		TargetEventID:  r.EventID(),
		SubjectID:      r.SubjectID(),
	}
}

// RegistrationCancelled is emitted when a registration is released.
type RegistrationCancelled struct {
	sharedDomain.BaseEvent
	RegistrationID uuid.UUID `json:"registration_id"`
	TargetEventID  uuid.UUID `json:"event_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
	HeldSeat       bool      `json:"held_seat"`
}

// NewRegistrationCancelled creates a RegistrationCancelled event.
func NewRegistrationCancelled(r *Registration, heldSeat bool) *RegistrationCancelled {
	return &RegistrationCancelled{
		BaseEvent:      sharedDomain.NewBaseEvent(r.ID(), aggregateType, "registration.cancelled"),
		RegistrationID: r.ID(),
		TargetEventID:  r.EventID(),
		SubjectID:      r.SubjectID(),
		HeldSeat:       heldSeat,
	}
}

// AttendanceMarked is emitted when attendance is recorded.
type AttendanceMarked struct {
	sharedDomain.BaseEvent
	RegistrationID uuid.UUID `json:"registration_id"`
	TargetEventID  uuid.UUID `json:"event_id"`
	SubjectID      uuid.UUID `json:"subject_id"`
	Status         string    `json:"status"`
}

// NewAttendanceMarked creates an AttendanceMarked event.
func NewAttendanceMarked(r *Registration) *AttendanceMarked {
	return &AttendanceMarked{
		BaseEvent:      sharedDomain.NewBaseEvent(r.ID(), aggregateType, "registration.attendance_marked"),
		RegistrationID: r.ID(),
		TargetEventID:  r.EventID(),
		SubjectID:      r.SubjectID(),
		Status:         string(r.Status()),
	}
}
