package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convenehq/convene/internal/reminders/domain"
	sharedPersistence "github.com/convenehq/convene/internal/shared/infrastructure/persistence"
)

const reminderColumns = `id, event_id, subject_id, offset_hours, channel, scheduled_at,
		status, attempts, last_error, sent_at, created_at, updated_at`

// PostgresReminderRepository implements domain.Repository using PostgreSQL.
type PostgresReminderRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReminderRepository creates a new PostgreSQL reminder repository.
func NewPostgresReminderRepository(pool *pgxpool.Pool) *PostgresReminderRepository {
	return &PostgresReminderRepository{pool: pool}
}

// CreateIfAbsent inserts a reminder unless the (event, subject, offset,
// channel) slot is already taken.
func (r *PostgresReminderRepository) CreateIfAbsent(ctx context.Context, reminder *domain.Reminder) (bool, error) {
	query := `
		INSERT INTO reminders (id, event_id, subject_id, offset_hours, channel,
			scheduled_at, status, attempts, last_error, sent_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)
		ON CONFLICT (event_id, subject_id, offset_hours, channel) DO NOTHING
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query,
		reminder.ID(),
		reminder.EventID(),
		reminder.SubjectID(),
		reminder.OffsetHours(),
		string(reminder.Channel()),
		reminder.ScheduledAt(),
		string(reminder.Status()),
		reminder.Attempts(),
		reminder.LastError(),
		reminder.SentAt(),
		reminder.CreatedAt(),
		reminder.UpdatedAt(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Save updates an existing reminder. A row already cancelled in the
// store is final and is never overwritten; saving one reports
// ErrReminderNotFound so an in-flight dispatch cannot revive it.
func (r *PostgresReminderRepository) Save(ctx context.Context, reminder *domain.Reminder) error {
	query := `
		UPDATE reminders
		SET scheduled_at = $2,
			status = $3,
			attempts = $4,
			last_error = NULLIF($5, ''),
			sent_at = $6,
			updated_at = $7
		WHERE id = $1 AND status <> 'cancelled'
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query,
		reminder.ID(),
		reminder.ScheduledAt(),
		string(reminder.Status()),
		reminder.Attempts(),
		reminder.LastError(),
		reminder.SentAt(),
		reminder.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReminderNotFound
	}
	return nil
}

// FindDue retrieves scheduled reminders whose fire time has arrived.
func (r *PostgresReminderRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*domain.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at
		LIMIT $2
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	rows, err := execer.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due reminders: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// Claim atomically moves a scheduled reminder into the sending state.
func (r *PostgresReminderRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE reminders
		SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CancelPending cancels all pending reminders of a subject for an event.
func (r *PostgresReminderRepository) CancelPending(ctx context.Context, eventID, subjectID uuid.UUID) (int, error) {
	query := `
		UPDATE reminders
		SET status = 'cancelled', updated_at = NOW()
		WHERE event_id = $1 AND subject_id = $2 AND status IN ('scheduled', 'sending')
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query, eventID, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to cancel pending reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// FindScheduledByEvent retrieves all scheduled reminders for an event.
// Rows claimed for sending are excluded so a concurrent dispatch is
// never rescheduled underneath the sender.
func (r *PostgresReminderRepository) FindScheduledByEvent(ctx context.Context, eventID uuid.UUID) ([]*domain.Reminder, error) {
	query := `
		SELECT ` + reminderColumns + `
		FROM reminders
		WHERE event_id = $1 AND status = 'scheduled'
		ORDER BY scheduled_at
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	rows, err := execer.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled reminders: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// PurgeSent deletes sent reminders older than the retention period.
func (r *PostgresReminderRepository) PurgeSent(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM reminders WHERE status = 'sent' AND sent_at < $1`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sent reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FailOverdue parks stale scheduled reminders as failed.
func (r *PostgresReminderRepository) FailOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE reminders
		SET status = 'failed',
			last_error = 'overdue: not delivered within the delivery window',
			updated_at = NOW()
		WHERE status = 'scheduled' AND scheduled_at < $1
	`

	execer := sharedPersistence.Executor(ctx, r.pool)
	tag, err := execer.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to park overdue reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanReminders(rows pgx.Rows) ([]*domain.Reminder, error) {
	var reminders []*domain.Reminder

	for rows.Next() {
		var (
			id          uuid.UUID
			eventID     uuid.UUID
			subjectID   uuid.UUID
			offsetHours int
			channel     string
			scheduledAt time.Time
			status      string
			attempts    int
			lastError   *string
			sentAt      *time.Time
			createdAt   time.Time
			updatedAt   time.Time
		)
		err := rows.Scan(&id, &eventID, &subjectID, &offsetHours, &channel,
			&scheduledAt, &status, &attempts, &lastError, &sentAt, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}

		var lastErrStr string
		if lastError != nil {
			lastErrStr = *lastError
		}
		reminders = append(reminders, domain.RehydrateReminder(
			id, eventID, subjectID, offsetHours, domain.Channel(channel),
			scheduledAt, domain.Status(status), attempts, lastErrStr, sentAt,
			createdAt, updatedAt,
		))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reminders, nil
}
