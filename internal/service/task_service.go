package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/store"
)

// TaskService carries the reminder side of the contract with the task CRUD
// collaborator: whenever a task gains a due time and a non-none channel its
// reminder is (re)scheduled, and whenever the channel is cleared or the task
// is done/deleted the reminder is cancelled.
type TaskService struct {
	taskStore store.TaskStore
	logger    *slog.Logger
}

// NewTaskService creates a TaskService with the given dependencies.
func NewTaskService(taskStore store.TaskStore, logger *slog.Logger) (*TaskService, error) {
	if taskStore == nil {
		return nil, errors.New("task service requires a task store")
	}
	if logger == nil {
		return nil, errors.New("task service requires a logger")
	}

	return &TaskService{
		taskStore: taskStore,
		logger:    logger.With(slog.String("component", "task_service")),
	}, nil
}

// CreateTask creates a task and, when a channel and due time are given,
// schedules its first reminder.
func (s *TaskService) CreateTask(
	ctx context.Context,
	quoteID uuid.UUID,
	title, recipient string,
	channel domain.ReminderChannel,
	dueAt *time.Time,
) (*domain.Task, error) {
	task, err := domain.NewTask(quoteID, title, recipient, channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if channel != domain.ChannelNone && dueAt != nil {
		if err := task.ScheduleReminder(*dueAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}

	if err := s.taskStore.Create(ctx, task); err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("reminder_status", string(task.ReminderStatus)))

	return task, nil
}

// ConfigureReminder re-establishes or cancels a task's reminder. Passing
// ChannelNone or a nil due time cancels; otherwise the reminder is reset and
// scheduled, including out of a terminal state (the explicit manual
// re-trigger path).
func (s *TaskService) ConfigureReminder(
	ctx context.Context,
	taskID uuid.UUID,
	channel domain.ReminderChannel,
	dueAt *time.Time,
) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if !channel.Valid() {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, domain.ErrInvalidChannel)
	}

	task.ReminderChannel = channel

	if channel == domain.ChannelNone || dueAt == nil {
		task.CancelReminder()
	} else {
		task.ResetReminder()
		if err := task.ScheduleReminder(*dueAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
		}
	}

	if err := s.taskStore.UpdateReminderState(ctx, task); err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("reminder reconfigured",
		slog.String("task_id", task.ID.String()),
		slog.String("channel", string(channel)),
		slog.String("reminder_status", string(task.ReminderStatus)))

	return task, nil
}

// CancelReminder cancels any active reminder on the task, for use when the
// task is marked done or deleted.
func (s *TaskService) CancelReminder(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.taskStore.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	task.CancelReminder()

	if err := s.taskStore.UpdateReminderState(ctx, task); err != nil {
		return nil, err
	}

	return task, nil
}
