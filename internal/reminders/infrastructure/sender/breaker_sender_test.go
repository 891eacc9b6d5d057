package sender

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convenehq/convene/internal/reminders/application/services"
)

type flakySender struct {
	err   error
	calls int
}

func (s *flakySender) Send(context.Context, services.Notification) error {
	s.calls++
	return s.err
}

func testNotification() services.Notification {
	return services.Notification{
		ReminderID: uuid.New(),
		EventID:    uuid.New(),
		SubjectID:  uuid.New(),
		Channel:    "email",
	}
}

func TestBreakerSender(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("passes successful sends through", func(t *testing.T) {
		inner := &flakySender{}
		breaker := NewBreakerSender(inner, DefaultBreakerConfig(), logger)

		require.NoError(t, breaker.Send(context.Background(), testNotification()))
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("trips after consecutive failures and fails fast", func(t *testing.T) {
		inner := &flakySender{err: errors.New("smtp down")}
		config := BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          time.Minute,
			FailureThreshold: 3,
		}
		breaker := NewBreakerSender(inner, config, logger)

		ctx := context.Background()
		for i := 0; i < 3; i++ {
			assert.EqualError(t, breaker.Send(ctx, testNotification()), "smtp down")
		}

		err := breaker.Send(ctx, testNotification())
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 3, inner.calls)
	})
}
