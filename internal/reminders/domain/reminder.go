// Package domain implements reminder scheduling: one reminder per
// event, subject, offset and channel, dispatched near its scheduled
// time with retry backoff.
package domain

import (
	"errors"
	"time"

	sharedDomain "github.com/convenehq/convene/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrOffsetElapsed     = errors.New("reminder offset already elapsed")
	ErrReminderNotFound  = errors.New("reminder not found")
	ErrNotPending        = errors.New("reminder is not pending")
	ErrInvalidChannel    = errors.New("invalid reminder channel")
	ErrSendFailure       = errors.New("reminder send failed")
	ErrAttemptsExhausted = errors.New("reminder delivery attempts exhausted")
)

// Channel is the delivery channel of a reminder.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
	ChannelInApp Channel = "inapp"
)

// IsValid checks if the channel is valid.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelInApp:
		return true
	default:
		return false
	}
}

// Status represents the delivery state of a reminder.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DefaultOffsetsHours is the reminder fan-out applied when an event
// does not configure its own offsets.
var DefaultOffsetsHours = []int{24, 2}

// BackoffPolicy controls retry delays after failed delivery attempts.
type BackoffPolicy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultBackoffPolicy returns the delivery retry defaults.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Base:        time.Minute,
		Max:         time.Hour,
		MaxAttempts: 5,
	}
}

// Delay returns the wait before the given attempt is retried. The
// first failure waits Base, each further one doubles, capped at Max.
func (p BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 32 {
		return p.Max
	}
	delay := p.Base * time.Duration(1<<shift)
	if delay > p.Max || delay <= 0 {
		return p.Max
	}
	return delay
}

// Reminder is a single scheduled notification for a subject about an
// event.
type Reminder struct {
	sharedDomain.BaseAggregateRoot
	eventID     uuid.UUID
	subjectID   uuid.UUID
	offsetHours int
	channel     Channel
	scheduledAt time.Time
	status      Status
	attempts    int
	lastError   string
	sentAt      *time.Time
}

// NewReminder creates a scheduled reminder. Offsets whose fire time is
// already in the past are rejected with ErrOffsetElapsed.
func NewReminder(eventID, subjectID uuid.UUID, offsetHours int, channel Channel, scheduledAt, now time.Time) (*Reminder, error) {
	if !channel.IsValid() {
		return nil, ErrInvalidChannel
	}
	if !scheduledAt.After(now) {
		return nil, ErrOffsetElapsed
	}

	return &Reminder{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		eventID:           eventID,
		subjectID:         subjectID,
		offsetHours:       offsetHours,
		channel:           channel,
		scheduledAt:       scheduledAt,
		status:            StatusScheduled,
	}, nil
}

// RehydrateReminder recreates a reminder from persisted state.
func RehydrateReminder(id, eventID, subjectID uuid.UUID, offsetHours int, channel Channel, scheduledAt time.Time, status Status, attempts int, lastError string, sentAt *time.Time, createdAt, updatedAt time.Time) *Reminder {
	return &Reminder{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)),
		eventID:     eventID,
		subjectID:   subjectID,
		offsetHours: offsetHours,
		channel:     channel,
		scheduledAt: scheduledAt,
		status:      status,
		attempts:    attempts,
		lastError:   lastError,
		sentAt:      sentAt,
	}
}

// Getters
func (r *Reminder) EventID() uuid.UUID     { return r.eventID }
func (r *Reminder) SubjectID() uuid.UUID   { return r.subjectID }
func (r *Reminder) OffsetHours() int       { return r.offsetHours }
func (r *Reminder) Channel() Channel       { return r.channel }
func (r *Reminder) ScheduledAt() time.Time { return r.scheduledAt }
func (r *Reminder) Status() Status         { return r.status }
func (r *Reminder) Attempts() int          { return r.attempts }
func (r *Reminder) LastError() string      { return r.lastError }
func (r *Reminder) SentAt() *time.Time     { return r.sentAt }

// IsPending reports whether the reminder still awaits delivery.
func (r *Reminder) IsPending() bool {
	return r.status == StatusScheduled || r.status == StatusSending
}

// MarkSending moves a claimed reminder into the sending state. The
// authoritative claim is the database CAS; this mirrors it on the
// aggregate.
func (r *Reminder) MarkSending() error {
	if r.status != StatusScheduled {
		return ErrNotPending
	}
	r.status = StatusSending
	r.Touch()
	return nil
}

// MarkSent records a successful delivery.
func (r *Reminder) MarkSent(now time.Time) {
	r.status = StatusSent
	r.sentAt = &now
	r.lastError = ""
	r.Touch()
}

// RecordFailure records a failed delivery attempt. The reminder is
// rescheduled with backoff until the policy's attempts are exhausted,
// then parked as failed. Returns ErrAttemptsExhausted in that case.
func (r *Reminder) RecordFailure(cause string, policy BackoffPolicy, now time.Time) error {
	r.attempts++
	r.lastError = cause
	r.Touch()

	if r.attempts >= policy.MaxAttempts {
		r.status = StatusFailed
		return ErrAttemptsExhausted
	}

	r.status = StatusScheduled
	r.scheduledAt = now.Add(policy.Delay(r.attempts))
	return nil
}

// Cancel withdraws a pending reminder.
func (r *Reminder) Cancel() error {
	if !r.IsPending() {
		return ErrNotPending
	}
	r.status = StatusCancelled
	r.Touch()
	return nil
}

// RescheduleTo moves a scheduled reminder to a new fire time. A fire
// time already in the past cancels the reminder instead. Reminders
// claimed for sending cannot be moved; the claim resolves first.
func (r *Reminder) RescheduleTo(scheduledAt, now time.Time) error {
	if r.status != StatusScheduled {
		return ErrNotPending
	}
	if !scheduledAt.After(now) {
		r.status = StatusCancelled
		r.Touch()
		return nil
	}
	r.status = StatusScheduled
	r.scheduledAt = scheduledAt
	r.Touch()
	return nil
}
