package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
)

// TaskStore defines the interface for task persistence, including the
// reminder-state fields mutated by the scheduler, dispatcher and correlator.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store.
	// Returns validation errors if the task data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateReminderState persists the task's reminder fields (channel,
	// status, next_reminder_at, attempt_count, last_reminder_error) and releases any
	// dispatch claim held on the row. Releasing the claim invalidates any
	// in-flight dispatch outcome for the task, so cancellations and
	// reconfigurations always win over a concurrent dispatch.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateReminderState(ctx context.Context, task *domain.Task) error

	// UpdateReminderOutcome persists a dispatch outcome (status,
	// next_reminder_at, attempt_count, last_reminder_error) and releases the
	// claim, but only while the row is still Scheduled with a live claim.
	// Returns ErrClaimConflict when another writer modified the task after it
	// was claimed; the caller must discard the outcome.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateReminderOutcome(ctx context.Context, task *domain.Task) error

	// ClaimDue atomically claims up to limit tasks that are Scheduled and due
	// at now, ordered by next_reminder_at ascending. A claimed task is skipped
	// by any overlapping invocation until the claim is released by
	// UpdateReminderOutcome or UpdateReminderState, or expires after claimTTL.
	// Rows locked by a concurrent claim are skipped, not waited on.
	ClaimDue(ctx context.Context, now time.Time, limit int, claimTTL time.Duration) ([]*domain.Task, error)

	// ClaimForDispatch claims a single Scheduled task regardless of its due
	// time, for manual re-trigger. Returns ErrTaskNotFound if the task does
	// not exist and ErrClaimConflict if it is not Scheduled or is already
	// claimed.
	ClaimForDispatch(ctx context.Context, id uuid.UUID, now time.Time, claimTTL time.Duration) (*domain.Task, error)

	// MarkReplied transitions a task from Sent to Replied. A task in any
	// other state is left untouched and false is returned; this keeps
	// duplicate webhook deliveries benign.
	// Returns ErrTaskNotFound if the task does not exist.
	MarkReplied(ctx context.Context, id uuid.UUID) (bool, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller,
	// typically through RunInTransaction.
	WithTx(tx *sql.Tx) TaskStore
}
