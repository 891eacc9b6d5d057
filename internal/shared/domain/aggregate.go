package domain

// AggregateRoot is a domain entity that is the root of an aggregate and
// records the domain events raised during a state change.
type AggregateRoot interface {
	Entity
	DomainEvents() []DomainEvent
	ClearDomainEvents()
	AddDomainEvent(event DomainEvent)
}

// BaseAggregateRoot provides common aggregate functionality.
type BaseAggregateRoot struct {
	BaseEntity
	domainEvents []DomainEvent
}

// NewBaseAggregateRoot creates a new aggregate root.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		domainEvents: make([]DomainEvent, 0),
	}
}

// RehydrateBaseAggregateRoot recreates an aggregate from persisted state
// without any pending events.
func RehydrateBaseAggregateRoot(entity BaseEntity) BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   entity,
		domainEvents: make([]DomainEvent, 0),
	}
}

// DomainEvents returns all uncommitted domain events.
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents removes all uncommitted domain events.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = make([]DomainEvent, 0)
}

// AddDomainEvent adds a domain event to the aggregate.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}
