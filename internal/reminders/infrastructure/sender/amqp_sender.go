// Package sender delivers reminder notifications to the outside world.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/convenehq/convene/internal/reminders/application/services"
	"github.com/convenehq/convene/internal/reminders/domain"
)

const notificationQueue = "convene.notifications"

// AMQPSender hands notifications to the delivery service through a
// durable RabbitMQ queue.
type AMQPSender struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	mu      sync.Mutex
	closed  bool
}

// NewAMQPSender connects to RabbitMQ and declares the notification
// queue.
func NewAMQPSender(url string, logger *slog.Logger) (*AMQPSender, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		notificationQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPSender{
		conn:    conn,
		channel: channel,
		logger:  logger,
	}, nil
}

// Send publishes the notification to the queue as a persistent message.
func (s *AMQPSender) Send(ctx context.Context, n services.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("sender is closed")
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		"", // default exchange
		notificationQueue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ReminderID.String(),
			Type:         string(n.Channel),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailure, err)
	}

	s.logger.Debug("notification queued",
		slog.String("reminder_id", n.ReminderID.String()),
		slog.String("channel", string(n.Channel)))

	return nil
}

// Close shuts down the channel and connection.
func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.channel.Close(); err != nil {
		s.conn.Close()
		return fmt.Errorf("failed to close channel: %w", err)
	}
	return s.conn.Close()
}
