package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/reminders/domain"
)

// Notification is the payload handed to a Sender.
type Notification struct {
	ReminderID  uuid.UUID      `json:"reminder_id"`
	EventID     uuid.UUID      `json:"event_id"`
	SubjectID   uuid.UUID      `json:"subject_id"`
	Channel     domain.Channel `json:"channel"`
	EventTitle  string         `json:"event_title"`
	StartsAt    time.Time      `json:"starts_at"`
	OffsetHours int            `json:"offset_hours"`
}

// Sender delivers a notification to the subject.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// EventSource loads the event a due reminder refers to.
type EventSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*eventsDomain.Event, error)
}

// DispatcherConfig holds configuration for the reminder dispatcher.
type DispatcherConfig struct {
	BatchSize   int
	Concurrency int
	// Retention controls how long sent reminders are kept before a
	// maintenance pass deletes them.
	Retention time.Duration
	// OverdueAfter parks scheduled reminders older than this as
	// failed instead of delivering them late.
	OverdueAfter time.Duration
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		BatchSize:    100,
		Concurrency:  8,
		Retention:    30 * 24 * time.Hour,
		OverdueAfter: 24 * time.Hour,
	}
}

// SweepStats summarizes one dispatch sweep.
type SweepStats struct {
	Due       int
	Claimed   int
	Sent      int
	Failed    int
	Exhausted int
}

// Dispatcher claims due reminders and delivers them through a Sender.
// Multiple dispatchers can sweep concurrently; the claim CAS makes
// sure each reminder is delivered at most once per attempt.
type Dispatcher struct {
	repo   domain.Repository
	events EventSource
	sender Sender
	policy domain.BackoffPolicy
	config DispatcherConfig
	logger *slog.Logger
	clock  func() time.Time
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(repo domain.Repository, events EventSource, sender Sender, policy domain.BackoffPolicy, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &Dispatcher{
		repo:   repo,
		events: events,
		sender: sender,
		policy: policy,
		config: config,
		logger: logger,
		clock:  time.Now,
	}
}

// SweepOnce claims and delivers one batch of due reminders.
func (d *Dispatcher) SweepOnce(ctx context.Context) (SweepStats, error) {
	now := d.clock()

	due, err := d.repo.FindDue(ctx, now, d.config.BatchSize)
	if err != nil {
		return SweepStats{}, err
	}

	var (
		mu    sync.Mutex
		stats = SweepStats{Due: len(due)}
		wg    sync.WaitGroup
		sem   = make(chan struct{}, d.config.Concurrency)
	)

	for _, reminder := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(reminder *domain.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := d.dispatch(ctx, reminder, now)
			mu.Lock()
			switch outcome {
			case outcomeSent:
				stats.Claimed++
				stats.Sent++
			case outcomeFailed:
				stats.Claimed++
				stats.Failed++
			case outcomeExhausted:
				stats.Claimed++
				stats.Failed++
				stats.Exhausted++
			}
			mu.Unlock()
		}(reminder)
	}

	wg.Wait()

	if stats.Due > 0 {
		d.logger.Info("reminder sweep finished",
			slog.Int("due", stats.Due),
			slog.Int("claimed", stats.Claimed),
			slog.Int("sent", stats.Sent),
			slog.Int("failed", stats.Failed),
			slog.Int("exhausted", stats.Exhausted),
		)
	}

	return stats, nil
}

type dispatchOutcome int

const (
	outcomeSkipped dispatchOutcome = iota
	outcomeSent
	outcomeFailed
	outcomeExhausted
)

func (d *Dispatcher) dispatch(ctx context.Context, reminder *domain.Reminder, now time.Time) dispatchOutcome {
	claimed, err := d.repo.Claim(ctx, reminder.ID())
	if err != nil {
		d.logger.Error("failed to claim reminder",
			slog.String("reminder_id", reminder.ID().String()),
			slog.Any("error", err),
		)
		return outcomeSkipped
	}
	if !claimed {
		return outcomeSkipped
	}
	if err := reminder.MarkSending(); err != nil {
		return outcomeSkipped
	}

	event, err := d.events.FindByID(ctx, reminder.EventID())
	if errors.Is(err, eventsDomain.ErrEventNotFound) {
		// The event vanished underneath the reminder.
		if err := reminder.Cancel(); err == nil {
			if err := d.repo.Save(ctx, reminder); err != nil {
				d.logger.Error("failed to cancel orphaned reminder",
					slog.String("reminder_id", reminder.ID().String()),
					slog.Any("error", err),
				)
			}
		}
		return outcomeSkipped
	}
	if err != nil {
		return d.recordFailure(ctx, reminder, err, now)
	}

	notification := Notification{
		ReminderID:  reminder.ID(),
		EventID:     event.ID,
		SubjectID:   reminder.SubjectID(),
		Channel:     reminder.Channel(),
		EventTitle:  event.Title,
		StartsAt:    event.StartsAt,
		OffsetHours: reminder.OffsetHours(),
	}

	if err := d.sender.Send(ctx, notification); err != nil {
		return d.recordFailure(ctx, reminder, err, now)
	}

	reminder.MarkSent(now)
	if err := d.repo.Save(ctx, reminder); err != nil {
		// A registration cancelled mid-send leaves the row cancelled;
		// the in-flight delivery completed but the record stays final.
		if !errors.Is(err, domain.ErrReminderNotFound) {
			d.logger.Error("failed to mark reminder sent",
				slog.String("reminder_id", reminder.ID().String()),
				slog.Any("error", err),
			)
		}
	}
	return outcomeSent
}

func (d *Dispatcher) recordFailure(ctx context.Context, reminder *domain.Reminder, cause error, now time.Time) dispatchOutcome {
	outcome := outcomeFailed
	err := reminder.RecordFailure(cause.Error(), d.policy, now)
	if errors.Is(err, domain.ErrAttemptsExhausted) {
		outcome = outcomeExhausted
		d.logger.Warn("reminder delivery attempts exhausted",
			slog.String("reminder_id", reminder.ID().String()),
			slog.String("subject_id", reminder.SubjectID().String()),
			slog.Int("attempts", reminder.Attempts()),
			slog.Any("error", cause),
		)
	} else {
		d.logger.Warn("reminder delivery failed, rescheduled",
			slog.String("reminder_id", reminder.ID().String()),
			slog.Time("next_attempt", reminder.ScheduledAt()),
			slog.Int("attempts", reminder.Attempts()),
			slog.Any("error", cause),
		)
	}

	if err := d.repo.Save(ctx, reminder); err != nil {
		if errors.Is(err, domain.ErrReminderNotFound) {
			// Cancelled underneath us: the retry is dropped on purpose.
			return outcomeSkipped
		}
		d.logger.Error("failed to persist reminder failure",
			slog.String("reminder_id", reminder.ID().String()),
			slog.Any("error", err),
		)
	}
	return outcome
}

// Maintain purges sent reminders past retention and parks reminders
// that are too stale to deliver.
func (d *Dispatcher) Maintain(ctx context.Context) error {
	now := d.clock()

	purged, err := d.repo.PurgeSent(ctx, now.Add(-d.config.Retention))
	if err != nil {
		return err
	}

	parked, err := d.repo.FailOverdue(ctx, now.Add(-d.config.OverdueAfter))
	if err != nil {
		return err
	}

	if purged > 0 || parked > 0 {
		d.logger.Info("reminder maintenance finished",
			slog.Int64("purged", purged),
			slog.Int64("parked_overdue", parked),
		)
	}
	return nil
}
