package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/redact"
	"github.com/quotery/reminder-api/internal/sender"
	"github.com/quotery/reminder-api/internal/store"
)

// ErrNotDispatchable is returned when a task's reminder state does not
// permit a dispatch attempt.
var ErrNotDispatchable = errors.New("task is not dispatchable")

// RetryPolicy shapes the transient-failure retry behavior.
// The default is 3 attempts with exponential backoff starting at 15 minutes
// and capped at 4 hours.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultRetryPolicy returns the documented default policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 15 * time.Minute,
		BackoffCap:  4 * time.Hour,
	}
}

// Backoff returns the delay before the given attempt number (1-based):
// BackoffBase * 2^(attempt-1), capped at BackoffCap. Monotonically
// non-decreasing in the attempt count.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := p.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.BackoffCap {
			return p.BackoffCap
		}
	}
	if delay > p.BackoffCap {
		return p.BackoffCap
	}
	return delay
}

// DispatchResult reports the outcome of one dispatch attempt.
type DispatchResult struct {
	// Sent is true when the channel provider accepted the message.
	Sent bool

	// ProviderMessageID is set when Sent is true.
	ProviderMessageID string

	// FailureReason is set when Sent is false.
	FailureReason string
}

// Dispatcher attempts delivery for one claimed task via the sender bound to
// its channel, then applies the log write and the reminder state transition
// as a single transaction: neither is ever visible without the other.
type Dispatcher struct {
	taskStore   store.TaskStore
	logStore    store.ReminderLogStore
	senders     *sender.Registry
	txRunner    store.TxRunner
	policy      RetryPolicy
	sendTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher with the given dependencies.
func NewDispatcher(
	taskStore store.TaskStore,
	logStore store.ReminderLogStore,
	senders *sender.Registry,
	txRunner store.TxRunner,
	policy RetryPolicy,
	sendTimeout time.Duration,
	logger *slog.Logger,
) (*Dispatcher, error) {
	if taskStore == nil || logStore == nil || senders == nil || txRunner == nil {
		return nil, errors.New("dispatcher requires task store, log store, senders and tx runner")
	}
	if logger == nil {
		return nil, errors.New("dispatcher requires a logger")
	}
	if policy.MaxAttempts < 1 {
		return nil, errors.New("retry policy must allow at least one attempt")
	}
	if sendTimeout <= 0 {
		return nil, errors.New("send timeout must be positive")
	}

	return &Dispatcher{
		taskStore:   taskStore,
		logStore:    logStore,
		senders:     senders,
		txRunner:    txRunner,
		policy:      policy,
		sendTimeout: sendTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		logger:      logger.With(slog.String("component", "dispatcher")),
	}, nil
}

// Dispatch attempts delivery for the task. The task must already be claimed
// and Scheduled with a non-none channel. It does not retry within a single
// call; a transient failure is rescheduled for a later batch run.
//
// On any sender outcome exactly one outbound log entry is written and the
// matching state transition applied, atomically. A log-write failure aborts
// the transition: the task stays claimed until the claim TTL expires and a
// later run retries.
//
// The outcome write is conditional on the claim still being held: a
// concurrent cancel or reconfigure releases the claim and wins, in which
// case the transaction rolls back, the outcome is discarded and
// store.ErrClaimConflict is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, task *domain.Task) (*DispatchResult, error) {
	log := logger.FromContextOrDefault(ctx, d.logger)

	if task.ReminderStatus != domain.ReminderScheduled ||
		task.ReminderChannel == domain.ChannelNone {
		return nil, fmt.Errorf("%w: status=%s channel=%s",
			ErrNotDispatchable, task.ReminderStatus, task.ReminderChannel)
	}

	body := reminderBody(task)

	result, sendErr := d.send(ctx, task, body)

	var entry *domain.ReminderLogEntry
	var err error
	if sendErr == nil {
		entry, err = domain.NewOutboundEntry(
			task.ID, task.ReminderChannel, domain.StatusSent,
			body, result.ProviderMessageID, "")
		if err == nil {
			err = task.MarkSent()
		}
	} else {
		reason := redact.Error(sendErr)
		entry, err = domain.NewOutboundEntry(
			task.ID, task.ReminderChannel, domain.StatusFailed,
			body, "", reason)
		if err == nil {
			if sender.IsPermanent(sendErr) {
				err = task.RecordPermanentFailure(reason)
			} else {
				nextAt := d.now().Add(d.policy.Backoff(task.AttemptCount + 1))
				err = task.RecordTransientFailure(reason, nextAt, d.policy.MaxAttempts)
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dispatch outcome: %w", err)
	}

	err = d.txRunner.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := d.logStore.WithTx(tx).Insert(ctx, entry); err != nil {
			return fmt.Errorf("failed to insert dispatch log entry: %w", err)
		}
		if err := d.taskStore.WithTx(tx).UpdateReminderOutcome(ctx, task); err != nil {
			return fmt.Errorf("failed to record task reminder outcome: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrClaimConflict) {
			log.Info("dispatch outcome discarded, task modified while claimed",
				slog.String("task_id", task.ID.String()))
			return nil, err
		}
		log.Error("failed to record dispatch outcome",
			slog.String("task_id", task.ID.String()),
			slog.String("error", redact.Error(err)))
		return nil, err
	}

	if sendErr == nil {
		log.Info("reminder dispatched",
			slog.String("task_id", task.ID.String()),
			slog.String("channel", string(task.ReminderChannel)),
			slog.String("provider_message_id", result.ProviderMessageID))
		return &DispatchResult{Sent: true, ProviderMessageID: result.ProviderMessageID}, nil
	}

	log.Warn("reminder dispatch failed",
		slog.String("task_id", task.ID.String()),
		slog.String("channel", string(task.ReminderChannel)),
		slog.String("reminder_status", string(task.ReminderStatus)),
		slog.Int("attempt_count", task.AttemptCount),
		slog.Bool("permanent", sender.IsPermanent(sendErr)),
		slog.String("error", redact.Error(sendErr)))
	return &DispatchResult{Sent: false, FailureReason: entry.ErrorMessage}, nil
}

// send resolves the channel sender and invokes it under the dispatch timeout.
// A missing sender binding and a timeout both come back as errors; the
// timeout is transient, the missing binding permanent.
func (d *Dispatcher) send(ctx context.Context, task *domain.Task, body string) (*sender.Result, error) {
	snd, err := d.senders.Get(task.ReminderChannel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sender.ErrPermanent, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	result, err := snd.Send(sendCtx, task.Recipient, body)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reminderBody builds the outbound message text. Content templating and
// localization are out of scope; the body is a fixed nudge naming the task.
func reminderBody(task *domain.Task) string {
	return fmt.Sprintf("Reminder: %s", task.Title)
}
