// Package services hosts domain services spanning multiple
// registrations of one event.
package services

import (
	"context"
	"fmt"
	"log/slog"

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
}

// WaitlistPromoter fills freed seats from the waitlist in arrival
// order. Callers must hold the event row lock; the promoter recomputes
// free seats itself, so calling it when nothing is free is harmless.
type WaitlistPromoter struct {
	regRepo    domain.Repository
	outboxRepo outbox.Repository
	scheduler  ReminderScheduler
	logger     *slog.Logger
}

// NewWaitlistPromoter creates a new WaitlistPromoter.
func NewWaitlistPromoter(regRepo domain.Repository, outboxRepo outbox.Repository, scheduler ReminderScheduler, logger *slog.Logger) *WaitlistPromoter {
	return &WaitlistPromoter{
		regRepo:    regRepo,
		outboxRepo: outboxRepo,
		scheduler:  scheduler,
		logger:     logger,
	}
}

// Promote moves as many waitlisted subjects into free seats as the
// event's capacity allows and returns the promoted registrations.
func (p *WaitlistPromoter) Promote(ctx context.Context, event *eventsDomain.Event, metadata sharedDomain.EventMetadata) ([]*domain.Registration, error) {
	if !event.WaitlistEnabled {
		return nil, nil
	}

	seated, err := p.regRepo.CountSeated(ctx, event.ID)
	if err != nil {
		return nil, err
	}

	free := event.Capacity - seated
	if free <= 0 {
		return nil, nil
	}

	waiting, err := p.regRepo.FindWaitlisted(ctx, event.ID, free)
	if err != nil {
		return nil, err
	}

	promoted := make([]*domain.Registration, 0, len(waiting))
	for _, reg := range waiting {
		if err := reg.Promote(); err != nil {
			return nil, fmt.Errorf("failed to promote registration %s: %w", reg.ID(), err)
		}
		if err := p.regRepo.Save(ctx, reg); err != nil {
			return nil, err
		}
		if err := p.scheduler.ScheduleFor(ctx, event, reg.SubjectID()); err != nil {
			return nil, err
		}

		events := reg.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, metadata)
		msgs, err := outbox.FromEvents(events)
		if err != nil {
			return nil, err
		}
		if err := p.outboxRepo.SaveBatch(ctx, msgs); err != nil {
			return nil, err
		}
		reg.ClearDomainEvents()

		p.logger.Info("promoted registration from waitlist",
			slog.String("registration_id", reg.ID().String()),
			slog.String("event_id", event.ID.String()),
			slog.String("subject_id", reg.SubjectID().String()),
		)
		promoted = append(promoted, reg)
	}

	return promoted, nil
}
