// Package commands implements the write operations of the registration
// context.
package commands

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/registrations/domain"
	sharedApplication "github.com/convenehq/convene/internal/shared/application"
	sharedDomain "github.com/convenehq/convene/internal/shared/domain"
	"github.com/convenehq/convene/internal/shared/infrastructure/outbox"
)

// ReminderScheduler creates the reminder fan-out for a subject that
// just got a seat.
type ReminderScheduler interface {
	ScheduleFor(ctx context.Context, event *eventsDomain.Event, subjectID uuid.UUID) error

	// CancelFor cancels all pending reminders of a subject for an
	// event and returns how many were cancelled.
	CancelFor(ctx context.Context, eventID, subjectID uuid.UUID) (int, error)
}

// RegisterCommand contains the data needed to register a subject.
type RegisterCommand struct {
	EventID   uuid.UUID
	SubjectID uuid.UUID
}

// RegisterResult contains the outcome of a registration attempt.
type RegisterResult struct {
	RegistrationID uuid.UUID
	Status         domain.Status
}

// RegisterHandler handles the RegisterCommand.
type RegisterHandler struct {
	eventRepo eventsDomain.Repository
	regRepo   domain.Repository
	outbox    outbox.Repository
	scheduler ReminderScheduler
	uow       sharedApplication.UnitOfWork
	clock     func() time.Time
}

// NewRegisterHandler creates a new RegisterHandler.
func NewRegisterHandler(eventRepo eventsDomain.Repository, regRepo domain.Repository, outboxRepo outbox.Repository, scheduler ReminderScheduler, uow sharedApplication.UnitOfWork) *RegisterHandler {
	return &RegisterHandler{
		eventRepo: eventRepo,
		regRepo:   regRepo,
		outbox:    outboxRepo,
		scheduler: scheduler,
		uow:       uow,
		clock:     time.Now,
	}
}

// Handle executes the RegisterCommand. The event row lock serializes
// all capacity decisions for the event, so the seat count cannot be
// oversubscribed by concurrent registrations.
func (h *RegisterHandler) Handle(ctx context.Context, cmd RegisterCommand) (*RegisterResult, error) {
	var result *RegisterResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		event, err := h.eventRepo.LockForUpdate(txCtx, cmd.EventID)
		if err != nil {
			return err
		}

		if !event.RegistrationOpen(h.clock()) {
			return domain.ErrDeadlinePassed
		}

		_, err = h.regRepo.FindLive(txCtx, cmd.EventID, cmd.SubjectID)
		if err == nil {
			return domain.ErrAlreadyRegistered
		}
		if !errors.Is(err, domain.ErrRegistrationNotFound) {
			return err
		}

		seated, err := h.regRepo.CountSeated(txCtx, cmd.EventID)
		if err != nil {
			return err
		}

		var reg *domain.Registration
		switch {
		case seated < event.Capacity:
			reg = domain.NewConfirmed(cmd.EventID, cmd.SubjectID)
		case event.WaitlistEnabled:
			reg = domain.NewWaitlisted(cmd.EventID, cmd.SubjectID)
		default:
			return domain.ErrEventFull
		}

		if err := h.regRepo.Save(txCtx, reg); err != nil {
			return err
		}

		if reg.Status() == domain.StatusConfirmed {
			if err := h.scheduler.ScheduleFor(txCtx, event, cmd.SubjectID); err != nil {
				return err
			}
		}

		if err := saveEventsToOutbox(txCtx, h.outbox, reg, sharedApplication.NewEventMetadata(cmd.SubjectID)); err != nil {
			return err
		}

		result = &RegisterResult{RegistrationID: reg.ID(), Status: reg.Status()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func saveEventsToOutbox(ctx context.Context, outboxRepo outbox.Repository, reg *domain.Registration, metadata sharedDomain.EventMetadata) error {
	events := reg.DomainEvents()
	sharedApplication.ApplyEventMetadata(events, metadata)

	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}
	if err := outboxRepo.SaveBatch(ctx, msgs); err != nil {
		return err
	}
	reg.ClearDomainEvents()
	return nil
}
