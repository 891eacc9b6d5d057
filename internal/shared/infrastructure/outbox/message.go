// Package outbox implements the transactional outbox: domain events are
// persisted in the same transaction as the aggregate change and relayed
// to the event bus by a background processor.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/convenehq/convene/internal/shared/domain"
	"github.com/google/uuid"
)

// Message represents an outbox message ready for publishing.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	EventType        string
	RoutingKey       string
	Payload          json.RawMessage
	Metadata         json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        *string
	DeadLetteredAt   *time.Time
	DeadLetterReason *string
}

// NewMessage creates an outbox message from a domain event.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		EventType:     event.RoutingKey(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// FromEvents converts a batch of domain events into outbox messages.
func FromEvents(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// IsPublished returns true if the message has been published.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}
