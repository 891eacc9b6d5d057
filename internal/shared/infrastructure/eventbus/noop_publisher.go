package eventbus

import (
	"context"
	"log/slog"
)

// NoopPublisher discards all events. Used when no broker is configured.
type NoopPublisher struct {
	logger *slog.Logger
}

// NewNoopPublisher creates a publisher that drops events on the floor.
func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.logger.Debug("event bus disabled, dropping event",
		slog.String("routing_key", routingKey))
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
