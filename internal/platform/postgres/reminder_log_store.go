package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/store"
)

// defaultLogListLimit bounds ListForTask when the caller passes no limit.
const defaultLogListLimit = 50

// PostgresReminderLogStore implements the store.ReminderLogStore interface
// using PostgreSQL. The table is append-only; this store exposes no update
// or delete path.
type PostgresReminderLogStore struct {
	db store.DBTX
}

// NewPostgresReminderLogStore creates a new PostgresReminderLogStore.
func NewPostgresReminderLogStore(db store.DBTX) *PostgresReminderLogStore {
	return &PostgresReminderLogStore{
		db: db,
	}
}

// WithTx returns a new ReminderLogStore instance that uses the provided transaction.
func (s *PostgresReminderLogStore) WithTx(tx *sql.Tx) store.ReminderLogStore {
	return &PostgresReminderLogStore{db: tx}
}

// Insert appends one log entry.
func (s *PostgresReminderLogStore) Insert(ctx context.Context, entry *domain.ReminderLogEntry) error {
	log := logger.FromContext(ctx)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO reminder_logs (id, task_id, direction, channel, status,
			message_body, provider_message_id, error_message, metadata,
			reply_from, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.TaskID,
		entry.Direction,
		entry.Channel,
		entry.Status,
		entry.MessageBody,
		nullableString(entry.ProviderMessageID),
		nullableString(entry.ErrorMessage),
		nullableBytes(entry.Metadata),
		nullableString(entry.ReplyFrom),
		entry.SentAt,
		entry.CreatedAt,
	)

	if err != nil {
		log.Error("failed to insert reminder log entry",
			"task_id", entry.TaskID,
			"direction", entry.Direction,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ListForTask returns the task's log entries, newest first, bounded by limit.
func (s *PostgresReminderLogStore) ListForTask(
	ctx context.Context,
	taskID uuid.UUID,
	limit int,
) ([]*domain.ReminderLogEntry, error) {
	log := logger.FromContext(ctx)

	if limit <= 0 {
		limit = defaultLogListLimit
	}

	query := `
		SELECT id, task_id, direction, channel, status, message_body,
			provider_message_id, error_message, metadata, reply_from,
			sent_at, created_at
		FROM reminder_logs
		WHERE task_id = $1
		ORDER BY sent_at DESC, created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, taskID, limit)
	if err != nil {
		log.Error("failed to query reminder log entries",
			"task_id", taskID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*domain.ReminderLogEntry
	for rows.Next() {
		var entry domain.ReminderLogEntry
		var providerMessageID, errorMessage, replyFrom sql.NullString
		var metadata []byte

		if err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.Direction,
			&entry.Channel,
			&entry.Status,
			&entry.MessageBody,
			&providerMessageID,
			&errorMessage,
			&metadata,
			&replyFrom,
			&entry.SentAt,
			&entry.CreatedAt,
		); err != nil {
			log.Error("failed to scan reminder log row",
				"task_id", taskID,
				"error", err)
			return nil, MapError(err)
		}

		entry.ProviderMessageID = providerMessageID.String
		entry.ErrorMessage = errorMessage.String
		entry.ReplyFrom = replyFrom.String
		entry.Metadata = metadata

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating reminder log rows",
			"task_id", taskID,
			"error", err)
		return nil, MapError(err)
	}

	return entries, nil
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
