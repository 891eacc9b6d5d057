package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/registrations/domain"
	sharedDomain "github.com/convenehq/convene/internal/shared/domain"
	"github.com/convenehq/convene/internal/shared/infrastructure/outbox"
)

type ctxKey string

// mockEventRepo is a mock implementation of the events repository.
type mockEventRepo struct {
	mock.Mock
}

func (m *mockEventRepo) FindByID(ctx context.Context, id uuid.UUID) (*eventsDomain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventsDomain.Event), args.Error(1)
}

func (m *mockEventRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*eventsDomain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventsDomain.Event), args.Error(1)
}

// mockRegistrationRepo is a mock implementation of domain.Repository.
type mockRegistrationRepo struct {
	mock.Mock
}

func (m *mockRegistrationRepo) Save(ctx context.Context, reg *domain.Registration) error {
	args := m.Called(ctx, reg)
	return args.Error(0)
}

func (m *mockRegistrationRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Registration), args.Error(1)
}

func (m *mockRegistrationRepo) FindLive(ctx context.Context, eventID, subjectID uuid.UUID) (*domain.Registration, error) {
	args := m.Called(ctx, eventID, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Registration), args.Error(1)
}

func (m *mockRegistrationRepo) CountSeated(ctx context.Context, eventID uuid.UUID) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *mockRegistrationRepo) FindWaitlisted(ctx context.Context, eventID uuid.UUID, limit int) ([]*domain.Registration, error) {
	args := m.Called(ctx, eventID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Registration), args.Error(1)
}

func (m *mockRegistrationRepo) FindLiveByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Registration), args.Error(1)
}

// mockOutboxRepo is a mock implementation of outbox.Repository.
type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, err string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, err, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockScheduler is a mock implementation of ReminderScheduler.
type mockScheduler struct {
	mock.Mock
}

func (m *mockScheduler) ScheduleFor(ctx context.Context, event *eventsDomain.Event, subjectID uuid.UUID) error {
	args := m.Called(ctx, event, subjectID)
	return args.Error(0)
}

func (m *mockScheduler) CancelFor(ctx context.Context, eventID, subjectID uuid.UUID) (int, error) {
	args := m.Called(ctx, eventID, subjectID)
	return args.Int(0), args.Error(1)
}

// mockPromoter is a mock implementation of Promoter.
type mockPromoter struct {
	mock.Mock
}

func (m *mockPromoter) Promote(ctx context.Context, event *eventsDomain.Event, metadata sharedDomain.EventMetadata) ([]*domain.Registration, error) {
	args := m.Called(ctx, event, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Registration), args.Error(1)
}

// mockUnitOfWork is a mock implementation of UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testEvent(capacity int, startsAt, deadline time.Time) *eventsDomain.Event {
	return &eventsDomain.Event{
		ID:                   uuid.New(),
		Title:                "Go Meetup",
		StartsAt:             startsAt,
		RegistrationDeadline: &deadline,
		Capacity:             capacity,
		WaitlistEnabled:      true,
		NotificationsEnabled: true,
		ReminderOffsetsHours: []int{24, 2},
	}
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
