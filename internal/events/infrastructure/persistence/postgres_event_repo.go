package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convenehq/convene/internal/events/domain"
	sharedPersistence "github.com/convenehq/convene/internal/shared/infrastructure/persistence"
)

const eventColumns = `id, title, starts_at, ends_at, registration_deadline, capacity,
		waitlist_enabled, notifications_enabled, reminder_offsets_hours, created_at, updated_at`

// PostgresEventRepository implements domain.Repository using PostgreSQL.
type PostgresEventRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresEventRepository creates a new PostgreSQL event repository.
func NewPostgresEventRepository(pool *pgxpool.Pool) *PostgresEventRepository {
	return &PostgresEventRepository{pool: pool}
}

// FindByID loads an event by its ID.
func (r *PostgresEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	execer := sharedPersistence.Executor(ctx, r.pool)
	return scanEvent(execer.QueryRow(ctx, query, id))
}

// LockForUpdate loads an event holding a row lock for the duration of
// the surrounding transaction.
func (r *PostgresEventRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	info, ok := sharedPersistence.TxInfoFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("LockForUpdate requires a transaction")
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 FOR UPDATE`
	return scanEvent(info.Tx.QueryRow(ctx, query, id))
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var event domain.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.StartsAt,
		&event.EndsAt,
		&event.RegistrationDeadline,
		&event.Capacity,
		&event.WaitlistEnabled,
		&event.NotificationsEnabled,
		&event.ReminderOffsetsHours,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return &event, nil
}
