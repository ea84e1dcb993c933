package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/store"
)

// taskColumns is the shared select list for task rows.
const taskColumns = `id, quote_id, title, recipient, reminder_channel,
	reminder_status, next_reminder_at, attempt_count, last_reminder_error,
	created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface using PostgreSQL.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// WithTx returns a new TaskStore instance that uses the provided transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// Create persists a task to the database.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, quote_id, title, recipient, reminder_channel,
			reminder_status, next_reminder_at, attempt_count,
			last_reminder_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.QuoteID,
		task.Title,
		task.Recipient,
		task.ReminderChannel,
		task.ReminderStatus,
		task.NextReminderAt,
		task.AttemptCount,
		nullableString(task.LastReminderError),
		task.CreatedAt,
		task.UpdatedAt,
	)

	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetByID retrieves a task by its unique ID.
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}

	return task, nil
}

// UpdateReminderState persists the task's reminder fields and releases any
// dispatch claim held on the row.
func (s *PostgresTaskStore) UpdateReminderState(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET reminder_channel = $1,
			reminder_status = $2,
			next_reminder_at = $3,
			attempt_count = $4,
			last_reminder_error = $5,
			reminder_claimed_at = NULL,
			updated_at = $6
		WHERE id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		task.ReminderChannel,
		task.ReminderStatus,
		task.NextReminderAt,
		task.AttemptCount,
		nullableString(task.LastReminderError),
		time.Now().UTC(),
		task.ID,
	)

	if err != nil {
		log.Error("failed to update task reminder state",
			"task_id", task.ID,
			"reminder_status", task.ReminderStatus,
			"error", err)
		return MapError(err)
	}

	if err := checkRowsAffected(result, "task"); err != nil {
		return err
	}

	return nil
}

// UpdateReminderOutcome persists a dispatch outcome, but only while the row
// is still Scheduled with a live claim. Cancelling, reconfiguring or replying
// goes through UpdateReminderState/MarkReplied, which clear the claim, so a
// concurrent writer always wins and the late outcome is rejected.
func (s *PostgresTaskStore) UpdateReminderOutcome(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET reminder_status = $1,
			next_reminder_at = $2,
			attempt_count = $3,
			last_reminder_error = $4,
			reminder_claimed_at = NULL,
			updated_at = $5
		WHERE id = $6
		  AND reminder_status = $7
		  AND reminder_claimed_at IS NOT NULL
	`

	result, err := s.db.ExecContext(ctx, query,
		task.ReminderStatus,
		task.NextReminderAt,
		task.AttemptCount,
		nullableString(task.LastReminderError),
		time.Now().UTC(),
		task.ID,
		domain.ReminderScheduled,
	)
	if err != nil {
		log.Error("failed to record dispatch outcome",
			"task_id", task.ID,
			"reminder_status", task.ReminderStatus,
			"error", err)
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	// Distinguish a missing task from one modified after the claim.
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
		return MapError(err)
	}
	if !exists {
		return store.ErrTaskNotFound
	}
	return store.ErrClaimConflict
}

// ClaimDue atomically claims up to limit due tasks. The sub-select locks
// candidate rows with SKIP LOCKED so overlapping batch runs never claim the
// same task; stale claims older than claimTTL are treated as released.
func (s *PostgresTaskStore) ClaimDue(
	ctx context.Context,
	now time.Time,
	limit int,
	claimTTL time.Duration,
) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET reminder_claimed_at = $1, updated_at = $1
		WHERE id IN (
			SELECT id FROM tasks
			WHERE reminder_status = $2
			  AND next_reminder_at <= $1
			  AND (reminder_claimed_at IS NULL OR reminder_claimed_at < $3)
			ORDER BY next_reminder_at ASC
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + taskColumns

	rows, err := s.db.QueryContext(ctx, query,
		now.UTC(),
		domain.ReminderScheduled,
		now.UTC().Add(-claimTTL),
		limit,
	)
	if err != nil {
		log.Error("failed to claim due tasks", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan claimed task row", "error", err)
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating claimed task rows", "error", err)
		return nil, MapError(err)
	}

	// RETURNING does not preserve the sub-select ordering.
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].NextReminderAt.Before(*tasks[j].NextReminderAt)
	})

	return tasks, nil
}

// ClaimForDispatch claims a single Scheduled task regardless of its due time.
func (s *PostgresTaskStore) ClaimForDispatch(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
	claimTTL time.Duration,
) (*domain.Task, error) {
	query := `
		UPDATE tasks
		SET reminder_claimed_at = $1, updated_at = $1
		WHERE id = $2
		  AND reminder_status = $3
		  AND (reminder_claimed_at IS NULL OR reminder_claimed_at < $4)
		RETURNING ` + taskColumns

	task, err := scanTask(s.db.QueryRowContext(ctx, query,
		now.UTC(),
		id,
		domain.ReminderScheduled,
		now.UTC().Add(-claimTTL),
	))
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, MapError(err)
	}

	// Distinguish a missing task from one that is simply not claimable.
	var exists bool
	checkErr := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists)
	if checkErr != nil {
		return nil, MapError(checkErr)
	}
	if !exists {
		return nil, store.ErrTaskNotFound
	}
	return nil, store.ErrClaimConflict
}

// MarkReplied transitions a task from Sent to Replied. Returns false without
// error when the task is in any other state, so duplicate webhook deliveries
// stay benign.
func (s *PostgresTaskStore) MarkReplied(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE tasks
		SET reminder_status = $1, reminder_claimed_at = NULL, updated_at = $2
		WHERE id = $3 AND reminder_status = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.ReminderReplied,
		time.Now().UTC(),
		id,
		domain.ReminderSent,
	)
	if err != nil {
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, MapError(err)
	}
	if !exists {
		return false, store.ErrTaskNotFound
	}
	return false, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var nextReminderAt sql.NullTime
	var lastReminderError sql.NullString

	err := row.Scan(
		&task.ID,
		&task.QuoteID,
		&task.Title,
		&task.Recipient,
		&task.ReminderChannel,
		&task.ReminderStatus,
		&nextReminderAt,
		&task.AttemptCount,
		&lastReminderError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if nextReminderAt.Valid {
		t := nextReminderAt.Time.UTC()
		task.NextReminderAt = &t
	}
	task.LastReminderError = lastReminderError.String

	return &task, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
