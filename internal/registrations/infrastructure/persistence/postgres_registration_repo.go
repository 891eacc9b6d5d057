package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convenehq/convene/internal/registrations/domain"
	sharedPersistence "github.com/convenehq/convene/internal/shared/infrastructure/persistence"
)

const registrationColumns = `id, event_id, subject_id, status, confirmed_at, created_at, updated_at`

// PostgresRegistrationRepository implements domain.Repository using PostgreSQL.
type PostgresRegistrationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistrationRepository creates a new PostgreSQL registration repository.
func NewPostgresRegistrationRepository(pool *pgxpool.Pool) *PostgresRegistrationRepository {
	return &PostgresRegistrationRepository{pool: pool}
}

// Save persists a registration using an upsert.
func (r *PostgresRegistrationRepository) Save(ctx context.Context, reg *domain.Registration) error {
	query := `
		INSERT INTO registrations (id, event_id, subject_id, status, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			confirmed_at = EXCLUDED.confirmed_at,
			updated_at = EXCLUDED.updated_at
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	_, err := execer.Exec(ctx, query,
		reg.ID(),
		reg.EventID(),
		reg.SubjectID(),
		string(reg.Status()),
		reg.ConfirmedAt(),
		reg.CreatedAt(),
		reg.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save registration: %w", err)
	}
	return nil
}

// FindByID retrieves a registration by its ID.
func (r *PostgresRegistrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	execer := sharedPersistence.Executor(ctx, r.pool)
	return scanRegistration(execer.QueryRow(ctx, query, id))
}

// FindLive retrieves the non-cancelled registration of a subject for an event.
func (r *PostgresRegistrationRepository) FindLive(ctx context.Context, eventID, subjectID uuid.UUID) (*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND subject_id = $2 AND status <> 'cancelled'
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	return scanRegistration(execer.QueryRow(ctx, query, eventID, subjectID))
}

// CountSeated counts registrations holding a seat for an event.
func (r *PostgresRegistrationRepository) CountSeated(ctx context.Context, eventID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1 AND status IN ('confirmed', 'present')
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	var count int
	if err := execer.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count seated registrations: %w", err)
	}
	return count, nil
}

// FindWaitlisted retrieves waitlisted registrations for an event in
// arrival order. The id tiebreak keeps the order deterministic when
// two rows share a timestamp.
func (r *PostgresRegistrationRepository) FindWaitlisted(ctx context.Context, eventID uuid.UUID, limit int) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status = 'waitlisted'
		ORDER BY created_at, id
		LIMIT $2
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	rows, err := execer.Query(ctx, query, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query waitlist: %w", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

// FindLiveByEvent retrieves all non-cancelled registrations for an event.
func (r *PostgresRegistrationRepository) FindLiveByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status <> 'cancelled'
		ORDER BY created_at, id
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	rows, err := execer.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	return scanRegistrations(rows)
}

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var (
		id          uuid.UUID
		eventID     uuid.UUID
		subjectID   uuid.UUID
		status      string
		confirmedAt *time.Time
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(&id, &eventID, &subjectID, &status, &confirmedAt, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}

	return domain.Rehydrate(id, eventID, subjectID, domain.Status(status), confirmedAt, createdAt, updatedAt), nil
}

func scanRegistrations(rows pgx.Rows) ([]*domain.Registration, error) {
	var regs []*domain.Registration

	for rows.Next() {
		var (
			id          uuid.UUID
			eventID     uuid.UUID
			subjectID   uuid.UUID
			status      string
			confirmedAt *time.Time
			createdAt   time.Time
			updatedAt   time.Time
		)
		if err := rows.Scan(&id, &eventID, &subjectID, &status, &confirmedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, domain.Rehydrate(id, eventID, subjectID, domain.Status(status), confirmedAt, createdAt, updatedAt))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return regs, nil
}
