package sender

import (
	"context"
	"log/slog"

	"github.com/convenehq/convene/internal/reminders/application/services"
)

// NoopSender logs notifications instead of delivering them. Used when
// no broker is configured.
type NoopSender struct {
	logger *slog.Logger
}

// NewNoopSender creates a sender that only logs.
func NewNoopSender(logger *slog.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

func (s *NoopSender) Send(_ context.Context, n services.Notification) error {
	s.logger.Info("notification delivery disabled, dropping",
		slog.String("reminder_id", n.ReminderID.String()),
		slog.String("subject_id", n.SubjectID.String()),
		slog.String("channel", string(n.Channel)))
	return nil
}
