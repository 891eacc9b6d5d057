package commands

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
	"github.com/convenehq/convene/internal/registrations/domain"
)

func TestRegisterHandler_Handle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	startsAt := now.Add(72 * time.Hour)
	deadline := now.Add(48 * time.Hour)
	subjectID := uuid.New()

	newHandler := func(eventRepo *mockEventRepo, regRepo *mockRegistrationRepo, outboxRepo *mockOutboxRepo, scheduler *mockScheduler, uow *mockUnitOfWork) *RegisterHandler {
		h := NewRegisterHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)
		h.clock = fixedClock(now)
		return h
	}

	t.Run("confirms when a seat is free", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		event := testEvent(10, startsAt, deadline)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, event.ID).Return(event, nil)
		regRepo.On("FindLive", txCtx, event.ID, subjectID).Return(nil, domain.ErrRegistrationNotFound)
		regRepo.On("CountSeated", txCtx, event.ID).Return(4, nil)
		regRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Registration")).Return(nil)
		scheduler.On("ScheduleFor", txCtx, event, subjectID).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, RegisterCommand{EventID: event.ID, SubjectID: subjectID})

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, domain.StatusConfirmed, result.Status)
		assert.NotEqual(t, uuid.Nil, result.RegistrationID)

		eventRepo.AssertExpectations(t)
		regRepo.AssertExpectations(t)
		scheduler.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("waitlists when the event is full", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		event := testEvent(10, startsAt, deadline)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, event.ID).Return(event, nil)
		regRepo.On("FindLive", txCtx, event.ID, subjectID).Return(nil, domain.ErrRegistrationNotFound)
		regRepo.On("CountSeated", txCtx, event.ID).Return(10, nil)
		regRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Registration")).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, RegisterCommand{EventID: event.ID, SubjectID: subjectID})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusWaitlisted, result.Status)

		// No reminders for a waitlisted subject.
		scheduler.AssertNotCalled(t, "ScheduleFor", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects when full and the waitlist is disabled", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		event := testEvent(10, startsAt, deadline)
		event.WaitlistEnabled = false
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, event.ID).Return(event, nil)
		regRepo.On("FindLive", txCtx, event.ID, subjectID).Return(nil, domain.ErrRegistrationNotFound)
		regRepo.On("CountSeated", txCtx, event.ID).Return(10, nil)

		result, err := handler.Handle(ctx, RegisterCommand{EventID: event.ID, SubjectID: subjectID})

		assert.ErrorIs(t, err, domain.ErrEventFull)
		assert.Nil(t, result)
		regRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		event := testEvent(10, startsAt, deadline)
		existing := domain.NewConfirmed(event.ID, subjectID)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, event.ID).Return(event, nil)
		regRepo.On("FindLive", txCtx, event.ID, subjectID).Return(existing, nil)

		result, err := handler.Handle(ctx, RegisterCommand{EventID: event.ID, SubjectID: subjectID})

		assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)
		assert.Nil(t, result)
		uow.AssertExpectations(t)
	})

	t.Run("rejects registration after the deadline", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		event := testEvent(10, startsAt, now.Add(-time.Hour))
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, event.ID).Return(event, nil)

		result, err := handler.Handle(ctx, RegisterCommand{EventID: event.ID, SubjectID: subjectID})

		assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
		assert.Nil(t, result)
		regRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("fails when the event does not exist", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		eventID := uuid.New()
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, eventID).Return(nil, eventsDomain.ErrEventNotFound)

		result, err := handler.Handle(ctx, RegisterCommand{EventID: eventID, SubjectID: subjectID})

		assert.ErrorIs(t, err, eventsDomain.ErrEventNotFound)
		assert.Nil(t, result)
	})

	t.Run("rolls back when reminder scheduling fails", func(t *testing.T) {
		eventRepo := new(mockEventRepo)
		regRepo := new(mockRegistrationRepo)
		outboxRepo := new(mockOutboxRepo)
		scheduler := new(mockScheduler)
		uow := new(mockUnitOfWork)
		handler := newHandler(eventRepo, regRepo, outboxRepo, scheduler, uow)

		event := testEvent(10, startsAt, deadline)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, ctxKey("tx"), "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		eventRepo.On("LockForUpdate", txCtx, event.ID).Return(event, nil)
		regRepo.On("FindLive", txCtx, event.ID, subjectID).Return(nil, domain.ErrRegistrationNotFound)
		regRepo.On("CountSeated", txCtx, event.ID).Return(0, nil)
		regRepo.On("Save", txCtx, mock.AnythingOfType("*domain.Registration")).Return(nil)
		scheduler.On("ScheduleFor", txCtx, event, subjectID).Return(errors.New("reminder table gone"))

		result, err := handler.Handle(ctx, RegisterCommand{EventID: event.ID, SubjectID: subjectID})

		assert.Error(t, err)
		assert.Nil(t, result)
		uow.AssertExpectations(t)
	})
}
