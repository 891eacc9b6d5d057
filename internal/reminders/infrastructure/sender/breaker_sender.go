package sender

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/convenehq/convene/internal/reminders/application/services"
)

// BreakerConfig configures the circuit breaker around a sender.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold is the number of consecutive failures that
	// trips the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns a sensible default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerSender wraps a sender with a circuit breaker so a broken
// delivery path fails fast instead of burning reminder attempts on
// timeouts.
type BreakerSender struct {
	inner   services.Sender
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerSender creates a circuit-breaking decorator around the
// given sender.
func NewBreakerSender(inner services.Sender, config BreakerConfig, logger *slog.Logger) *BreakerSender {
	settings := gobreaker.Settings{
		Name:        "reminder-sender",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerSender{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Send delivers through the inner sender under breaker protection.
func (s *BreakerSender) Send(ctx context.Context, n services.Notification) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.inner.Send(ctx, n)
	})
	return err
}
