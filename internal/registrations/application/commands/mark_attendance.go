package commands

import (
	"context"

	"github.com/google/uuid"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/registrations/domain"
	sharedApplication "github.com/convenehq/convene/internal/shared/application"
	"github.com/convenehq/convene/internal/shared/infrastructure/outbox"
)

// MarkAttendanceCommand records whether a seated subject showed up.
type MarkAttendanceCommand struct {
	EventID   uuid.UUID
	SubjectID uuid.UUID
	ActorID   uuid.UUID
	Present   bool
}

// MarkAttendanceResult contains the outcome of marking attendance.
type MarkAttendanceResult struct {
	RegistrationID   uuid.UUID
	Status           domain.Status
	PromotedSubjects []uuid.UUID
}

// MarkAttendanceHandler handles the MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	eventRepo eventsDomain.Repository
	regRepo   domain.Repository
	outbox    outbox.Repository
	promoter  Promoter
	uow       sharedApplication.UnitOfWork
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(eventRepo eventsDomain.Repository, regRepo domain.Repository, outboxRepo outbox.Repository, promoter Promoter, uow sharedApplication.UnitOfWork) *MarkAttendanceHandler {
	return &MarkAttendanceHandler{
		eventRepo: eventRepo,
		regRepo:   regRepo,
		outbox:    outboxRepo,
		promoter:  promoter,
		uow:       uow,
	}
}

// Handle executes the MarkAttendanceCommand. A no-show releases the
// seat, so the waitlist is drained in the same transaction.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*MarkAttendanceResult, error) {
	var result *MarkAttendanceResult

	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		event, err := h.eventRepo.LockForUpdate(txCtx, cmd.EventID)
		if err != nil {
			return err
		}

		reg, err := h.regRepo.FindLive(txCtx, cmd.EventID, cmd.SubjectID)
		if err != nil {
			return err
		}

		wasSeated := reg.Status().CountsAgainstCapacity()
		if cmd.Present {
			err = reg.MarkPresent()
		} else {
			err = reg.MarkAbsent()
		}
		if err != nil {
			return err
		}

		if err := h.regRepo.Save(txCtx, reg); err != nil {
			return err
		}

		metadata := sharedApplication.NewEventMetadata(cmd.ActorID)
		if err := saveEventsToOutbox(txCtx, h.outbox, reg, metadata); err != nil {
			return err
		}

		result = &MarkAttendanceResult{
			RegistrationID: reg.ID(),
			Status:         reg.Status(),
		}

		if wasSeated && !reg.Status().CountsAgainstCapacity() {
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
