package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/reminders/domain"
)

func TestDispatcherSweepOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := domain.BackoffPolicy{Base: time.Minute, Max: time.Hour, MaxAttempts: 3}

	newDispatcher := func(repo *mockReminderRepo, events *mockEventSource, sender *mockSender) *Dispatcher {
		d := NewDispatcher(repo, events, sender, policy, DefaultDispatcherConfig(), testLogger())
		d.clock = fixedClock(now)
		return d
	}

	dueReminder := func(t *testing.T, eventID uuid.UUID) *domain.Reminder {
		t.Helper()
		reminder, err := domain.NewReminder(eventID, uuid.New(), 2, domain.ChannelEmail, now.Add(time.Minute), now)
		require.NoError(t, err)
		return reminder
	}

	t.Run("claims, sends and marks due reminders sent", func(t *testing.T) {
		repo := new(mockReminderRepo)
		events := new(mockEventSource)
		sender := new(mockSender)
		dispatcher := newDispatcher(repo, events, sender)

		event := &eventsDomain.Event{ID: uuid.New(), Title: "Go Meetup", StartsAt: now.Add(2 * time.Hour)}
		reminder := dueReminder(t, event.ID)

		ctx := context.Background()
		repo.On("FindDue", ctx, now, 100).Return([]*domain.Reminder{reminder}, nil)
		repo.On("Claim", ctx, reminder.ID()).Return(true, nil)
		events.On("FindByID", ctx, event.ID).Return(event, nil)
		sender.On("Send", ctx, mock.AnythingOfType("Notification")).Return(nil)
		repo.On("Save", ctx, reminder).Return(nil)

		stats, err := dispatcher.SweepOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, SweepStats{Due: 1, Claimed: 1, Sent: 1}, stats)
		assert.Equal(t, domain.StatusSent, reminder.Status())

		sentNotification := sender.Calls[0].Arguments.Get(1).(Notification)
		assert.Equal(t, reminder.ID(), sentNotification.ReminderID)
		assert.Equal(t, "Go Meetup", sentNotification.EventTitle)
		assert.Equal(t, domain.ChannelEmail, sentNotification.Channel)
	})

	t.Run("skips reminders claimed by another dispatcher", func(t *testing.T) {
		repo := new(mockReminderRepo)
		events := new(mockEventSource)
		sender := new(mockSender)
		dispatcher := newDispatcher(repo, events, sender)

		reminder := dueReminder(t, uuid.New())

		ctx := context.Background()
		repo.On("FindDue", ctx, now, 100).Return([]*domain.Reminder{reminder}, nil)
		repo.On("Claim", ctx, reminder.ID()).Return(false, nil)

		stats, err := dispatcher.SweepOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, SweepStats{Due: 1}, stats)
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("reschedules with backoff on send failure", func(t *testing.T) {
		repo := new(mockReminderRepo)
		events := new(mockEventSource)
		sender := new(mockSender)
		dispatcher := newDispatcher(repo, events, sender)

		event := &eventsDomain.Event{ID: uuid.New(), Title: "Go Meetup", StartsAt: now.Add(2 * time.Hour)}
		reminder := dueReminder(t, event.ID)

		ctx := context.Background()
		repo.On("FindDue", ctx, now, 100).Return([]*domain.Reminder{reminder}, nil)
		repo.On("Claim", ctx, reminder.ID()).Return(true, nil)
		events.On("FindByID", ctx, event.ID).Return(event, nil)
		sender.On("Send", ctx, mock.AnythingOfType("Notification")).Return(errors.New("smtp timeout"))
		repo.On("Save", ctx, reminder).Return(nil)

		stats, err := dispatcher.SweepOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, SweepStats{Due: 1, Claimed: 1, Failed: 1}, stats)
		assert.Equal(t, domain.StatusScheduled, reminder.Status())
		assert.Equal(t, 1, reminder.Attempts())
		assert.Equal(t, now.Add(time.Minute), reminder.ScheduledAt())
	})

	t.Run("parks the reminder after the last attempt", func(t *testing.T) {
		repo := new(mockReminderRepo)
		events := new(mockEventSource)
		sender := new(mockSender)
		dispatcher := newDispatcher(repo, events, sender)

		event := &eventsDomain.Event{ID: uuid.New(), StartsAt: now.Add(2 * time.Hour)}
		reminder, err := domain.NewReminder(event.ID, uuid.New(), 2, domain.ChannelEmail, now.Add(time.Minute), now)
		require.NoError(t, err)
		require.NoError(t, reminder.RecordFailure("earlier failure", policy, now.Add(-time.Hour)))
		require.NoError(t, reminder.RecordFailure("earlier failure", policy, now.Add(-time.Hour)))

		ctx := context.Background()
		repo.On("FindDue", ctx, now, 100).Return([]*domain.Reminder{reminder}, nil)
		repo.On("Claim", ctx, reminder.ID()).Return(true, nil)
		events.On("FindByID", ctx, event.ID).Return(event, nil)
		sender.On("Send", ctx, mock.AnythingOfType("Notification")).Return(errors.New("smtp timeout"))
		repo.On("Save", ctx, reminder).Return(nil)

		stats, err := dispatcher.SweepOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, SweepStats{Due: 1, Claimed: 1, Failed: 1, Exhausted: 1}, stats)
		assert.Equal(t, domain.StatusFailed, reminder.Status())
	})

	t.Run("cancels reminders whose event vanished", func(t *testing.T) {
		repo := new(mockReminderRepo)
		events := new(mockEventSource)
		sender := new(mockSender)
		dispatcher := newDispatcher(repo, events, sender)

		reminder := dueReminder(t, uuid.New())

		ctx := context.Background()
		repo.On("FindDue", ctx, now, 100).Return([]*domain.Reminder{reminder}, nil)
		repo.On("Claim", ctx, reminder.ID()).Return(true, nil)
		events.On("FindByID", ctx, reminder.EventID()).Return(nil, eventsDomain.ErrEventNotFound)
		repo.On("Save", ctx, reminder).Return(nil)

		stats, err := dispatcher.SweepOnce(ctx)

		require.NoError(t, err)
		assert.Equal(t, SweepStats{Due: 1}, stats)
		assert.Equal(t, domain.StatusCancelled, reminder.Status())
		sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("returns repository errors", func(t *testing.T) {
		repo := new(mockReminderRepo)
		events := new(mockEventSource)
		sender := new(mockSender)
		dispatcher := newDispatcher(repo, events, sender)

		ctx := context.Background()
		repo.On("FindDue", ctx, now, 100).Return(nil, errors.New("db down"))

		_, err := dispatcher.SweepOnce(ctx)
		assert.EqualError(t, err, "db down")
	})
}

func TestDispatcherMaintain(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	repo := new(mockReminderRepo)
	events := new(mockEventSource)
	sender := new(mockSender)
	config := DefaultDispatcherConfig()
	dispatcher := NewDispatcher(repo, events, sender, domain.DefaultBackoffPolicy(), config, testLogger())
	dispatcher.clock = fixedClock(now)

	ctx := context.Background()
	repo.On("PurgeSent", ctx, now.Add(-config.Retention)).Return(int64(12), nil)
	repo.On("FailOverdue", ctx, now.Add(-config.OverdueAfter)).Return(int64(3), nil)

	require.NoError(t, dispatcher.Maintain(ctx))
	repo.AssertExpectations(t)
}
