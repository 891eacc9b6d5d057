package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	eventsDomain "github.com/convenehq/convene/internal/events/domain"
	"github.com/convenehq/convene/internal/reminders/domain"
)

// mockReminderRepo is a mock implementation of domain.Repository.
type mockReminderRepo struct {
	mock.Mock
}

func (m *mockReminderRepo) CreateIfAbsent(ctx context.Context, reminder *domain.Reminder) (bool, error) {
	args := m.Called(ctx, reminder)
	return args.Bool(0), args.Error(1)
}

func (m *mockReminderRepo) Save(ctx context.Context, reminder *domain.Reminder) error {
	args := m.Called(ctx, reminder)
	return args.Error(0)
}

func (m *mockReminderRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reminder), args.Error(1)
}

func (m *mockReminderRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockReminderRepo) CancelPending(ctx context.Context, eventID, subjectID uuid.UUID) (int, error) {
	args := m.Called(ctx, eventID, subjectID)
	return args.Int(0), args.Error(1)
}

func (m *mockReminderRepo) FindScheduledByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Reminder, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Reminder), args.Error(1)
}

func (m *mockReminderRepo) PurgeSent(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReminderRepo) FailOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// mockSubjectLister is a mock implementation of SubjectLister.
type mockSubjectLister struct {
	mock.Mock
}

func (m *mockSubjectLister) ListSeatedSubjects(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// mockEventSource is a mock implementation of EventSource.
type mockEventSource struct {
	mock.Mock
}

func (m *mockEventSource) FindByID(ctx context.Context, id uuid.UUID) (*eventsDomain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventsDomain.Event), args.Error(1)
}

// mockSender is a mock implementation of Sender.
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}
