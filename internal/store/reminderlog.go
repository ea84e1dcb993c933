package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
)

// ReminderLogStore defines the interface for the append-only reminder audit
// trail. Entries are inserted and read, never updated or deleted.
// Version: 1.0
type ReminderLogStore interface {
	// Insert appends one log entry. The entry's task must exist; a foreign
	// key violation surfaces as ErrInvalidEntity.
	//
	// When the insert must be atomic with a task state transition (every
	// dispatch attempt), run it inside a transaction via WithTx and
	// RunInTransaction together with TaskStore.UpdateReminderState.
	Insert(ctx context.Context, entry *domain.ReminderLogEntry) error

	// ListForTask returns the task's log entries, newest first, bounded by
	// limit. Pure read, no side effects.
	ListForTask(ctx context.Context, taskID uuid.UUID, limit int) ([]*domain.ReminderLogEntry, error)

	// WithTx returns a new ReminderLogStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller,
	// typically through RunInTransaction.
	WithTx(tx *sql.Tx) ReminderLogStore
}
