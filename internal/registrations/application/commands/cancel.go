package commands

import (
	"context"
	"time"

	"github.com/google/uuid"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/registrations/domain"
	sharedApplication "github.com/convenehq/convene/internal/shared/application"
	sharedDomain "github.com/convenehq/convene/internal/shared/domain"
	"github.com/convenehq/convene/internal/shared/infrastructure/outbox"
)

// Promoter fills freed seats from the waitlist.
type Promoter interface {
	Promote(ctx context.Context, event *eventsDomain.Event, metadata sharedDomain.EventMetadata) ([]*domain.Registration, error)
}

// CancelCommand contains the data needed to cancel a registration.
// Privileged skips the ownership check for organizer-initiated
// cancellations.
type CancelCommand struct {
	RegistrationID uuid.UUID
	ActorID        uuid.UUID
	Privileged     bool
}

// CancelResult contains the outcome of a cancellation.
type CancelResult struct {
	RegistrationID     uuid.UUID
	PromotedSubjects   []uuid.UUID
	CancelledReminders int
}

// CancelHandler handles the CancelCommand.
type CancelHandler struct {
	eventRepo eventsDomain.Repository
	regRepo   domain.Repository
	outbox    outbox.Repository
	scheduler ReminderScheduler
	promoter  Promoter
	uow       sharedApplication.UnitOfWork
	clock     func() time.Time
}

// NewCancelHandler creates a new CancelHandler.
func NewCancelHandler(eventRepo eventsDomain.Repository, regRepo domain.Repository, outboxRepo outbox.Repository, scheduler ReminderScheduler, promoter Promoter, uow sharedApplication.UnitOfWork) *CancelHandler {
	return &CancelHandler{
		eventRepo: eventRepo,
		regRepo:   regRepo,
		outbox:    outboxRepo,
		scheduler: scheduler,
		promoter:  promoter,
		uow:       uow,
		clock:     time.Now,
	}
}

// Handle executes the CancelCommand. Cancelling a seated registration
// promotes the head of the waitlist inside the same transaction, so a
// freed seat is never observable as empty.
func (h *CancelHandler) Handle(ctx context.Context, cmd CancelCommand) (*CancelResult, error) {
	var result *CancelResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		reg, err := h.regRepo.FindByID(txCtx, cmd.RegistrationID)
		if err != nil {
			return err
		}

		event, err := h.eventRepo.LockForUpdate(txCtx, reg.EventID())
		if err != nil {
			return err
		}

		// Reload under the event lock so the seat decision is
		// serialized with concurrent writes for the same event.
		reg, err = h.regRepo.FindByID(txCtx, cmd.RegistrationID)
		if err != nil {
			return err
		}

		if !cmd.Privileged && !reg.IsOwnedBy(cmd.ActorID) {
			return domain.ErrForbidden
		}

		if !h.clock().Before(event.StartsAt) {
			return domain.ErrDeadlinePassed
		}

		heldSeat := reg.Status().CountsAgainstCapacity()
		if err := reg.Cancel(); err != nil {
			return err
		}
		if err := h.regRepo.Save(txCtx, reg); err != nil {
			return err
		}

		cancelled, err := h.scheduler.CancelFor(txCtx, reg.EventID(), reg.SubjectID())
		if err != nil {
			return err
		}

		metadata := sharedApplication.NewEventMetadata(cmd.ActorID)
		if err := saveEventsToOutbox(txCtx, h.outbox, reg, metadata); err != nil {
			return err
		}

		result = &CancelResult{
			RegistrationID:     reg.ID(),
			CancelledReminders: cancelled,
		}

		if heldSeat {
			promoted, err := h.promoter.Promote(txCtx, event, metadata)
			if err != nil {
				return err
			}
			for _, p := range promoted {
				result.PromotedSubjects = append(result.PromotedSubjects, p.SubjectID())
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
