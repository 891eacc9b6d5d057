// Package services implements reminder scheduling and dispatch.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/reminders/domain"
)

// SubjectLister lists the subjects currently holding a seat for an
// event. Implemented by the registration context.
type SubjectLister interface {
	ListSeatedSubjects(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

// Scheduler derives the reminder fan-out for seated subjects from an
// event's reminder offsets.
type Scheduler struct {
	repo     domain.Repository
	lister   SubjectLister
	channels []domain.Channel
	logger   *slog.Logger
	clock    func() time.Time
}

// NewScheduler creates a new Scheduler. With no channels configured,
// reminders go out via email.
func NewScheduler(repo domain.Repository, lister SubjectLister, channels []domain.Channel, logger *slog.Logger) *Scheduler {
	if len(channels) == 0 {
		channels = []domain.Channel{domain.ChannelEmail}
	}
	return &Scheduler{
		repo:     repo,
		lister:   lister,
		channels: channels,
		logger:   logger,
		clock:    time.Now,
	}
}

func eventOffsets(event *eventsDomain.Event) []int {
	if len(event.ReminderOffsetsHours) > 0 {
		return event.ReminderOffsetsHours
	}
	return domain.DefaultOffsetsHours
}

// ScheduleFor creates the reminders of one subject for an event, one
// per offset and channel. Events with notifications disabled get none.
// Offsets whose fire time already elapsed are skipped; reminders that
// already exist are left untouched, so the operation is idempotent.
func (s *Scheduler) ScheduleFor(ctx context.Context, event *eventsDomain.Event, subjectID uuid.UUID) error {
	if !event.NotificationsEnabled {
		return nil
	}
	now := s.clock()

	for _, offset := range eventOffsets(event) {
		for _, channel := range s.channels {
			reminder, err := domain.NewReminder(event.ID, subjectID, offset, channel, event.ReminderAt(offset), now)
			if errors.Is(err, domain.ErrOffsetElapsed) {
				s.logger.Debug("skipping elapsed reminder offset",
					slog.String("event_id", event.ID.String()),
					slog.Int("offset_hours", offset),
				)
				continue
			}
			if err != nil {
				return err
			}

			created, err := s.repo.CreateIfAbsent(ctx, reminder)
			if err != nil {
				return err
			}
			if created {
				s.logger.Info("scheduled reminder",
					slog.String("reminder_id", reminder.ID().String()),
					slog.String("event_id", event.ID.String()),
					slog.String("subject_id", subjectID.String()),
					slog.Int("offset_hours", offset),
					slog.String("channel", string(channel)),
				)
			}
		}
	}

	return nil
}

// CancelFor cancels all pending reminders of a subject for an event.
func (s *Scheduler) CancelFor(ctx context.Context, eventID, subjectID uuid.UUID) (int, error) {
	cancelled, err := s.repo.CancelPending(ctx, eventID, subjectID)
	if err != nil {
		return 0, err
	}
	if cancelled > 0 {
		s.logger.Info("cancelled pending reminders",
			slog.String("event_id", eventID.String()),
			slog.String("subject_id", subjectID.String()),
			slog.Int("count", cancelled),
		)
	}
	return cancelled, nil
}

// RescheduleForEventChange realigns the reminder fan-out after an
// event's start time or offsets changed. Scheduled reminders for
// removed offsets are cancelled, kept ones are moved to the new fire
// time, and missing ones are scheduled for every seated subject.
// Reminders claimed for sending are left to the dispatcher.
func (s *Scheduler) RescheduleForEventChange(ctx context.Context, event *eventsDomain.Event) error {
	now := s.clock()

	// With notifications switched off the desired fan-out is empty and
	// every scheduled reminder gets cancelled below.
	offsets := make(map[int]bool)
	if event.NotificationsEnabled {
		for _, offset := range eventOffsets(event) {
			offsets[offset] = true
		}
	}

	scheduled, err := s.repo.FindScheduledByEvent(ctx, event.ID)
	if err != nil {
		return err
	}

	for _, reminder := range scheduled {
		if !offsets[reminder.OffsetHours()] {
			if err := reminder.Cancel(); err != nil {
				return err
			}
		} else if err := reminder.RescheduleTo(event.ReminderAt(reminder.OffsetHours()), now); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, reminder); err != nil {
			return err
		}
	}

	subjects, err := s.lister.ListSeatedSubjects(ctx, event.ID)
	if err != nil {
		return err
	}
	for _, subjectID := range subjects {
		if err := s.ScheduleFor(ctx, event, subjectID); err != nil {
			return err
		}
	}

	s.logger.Info("realigned reminders for event change",
		slog.String("event_id", event.ID.String()),
		slog.Int("scheduled", len(scheduled)),
		slog.Int("subjects", len(subjects)),
	)
	return nil
}
