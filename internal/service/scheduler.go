package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/redact"
	"github.com/quotery/reminder-api/internal/store"
)

// TaskDispatcher is the slice of the Dispatcher the scheduler needs.
type TaskDispatcher interface {
	Dispatch(ctx context.Context, task *domain.Task) (*DispatchResult, error)
}

// SchedulerConfig bounds one batch run.
type SchedulerConfig struct {
	// BatchSize caps how many due tasks one run claims.
	BatchSize int

	// ClaimTTL is how long a claim is honored before a later run may
	// reclaim the task.
	ClaimTTL time.Duration

	// WorkerCount bounds concurrent dispatches within the batch. Each
	// task is dispatched by exactly one worker; per-task serialization is
	// guaranteed by the claim.
	WorkerCount int
}

// RunSummary aggregates the outcome of one batch run. Skipped counts claims
// lost to a concurrent writer (e.g. a cancellation landing mid-dispatch); it
// is reported in logs but kept out of the wire response.
type RunSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Skipped   int `json:"-"`
}

// Scheduler is the batch runner: invoked by an external periodic trigger, it
// claims all currently-due reminders and drives the dispatcher over the
// batch. It holds no state between invocations; overlapping invocations are
// safe because claiming is atomic at the store.
type Scheduler struct {
	taskStore  store.TaskStore
	dispatcher TaskDispatcher
	cfg        SchedulerConfig
	now        func() time.Time
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler with the given dependencies.
func NewScheduler(
	taskStore store.TaskStore,
	dispatcher TaskDispatcher,
	cfg SchedulerConfig,
	logger *slog.Logger,
) (*Scheduler, error) {
	if taskStore == nil || dispatcher == nil {
		return nil, errors.New("scheduler requires a task store and a dispatcher")
	}
	if logger == nil {
		return nil, errors.New("scheduler requires a logger")
	}
	if cfg.BatchSize < 1 {
		return nil, errors.New("batch size must be positive")
	}
	if cfg.WorkerCount < 1 {
		return nil, errors.New("worker count must be positive")
	}
	if cfg.ClaimTTL <= 0 {
		return nil, errors.New("claim TTL must be positive")
	}

	return &Scheduler{
		taskStore:  taskStore,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With(slog.String("component", "scheduler")),
	}, nil
}

// RunOne claims the single task regardless of its due time and dispatches
// it immediately: the manual re-trigger path. The task must be Scheduled and
// not claimed by a concurrent run.
func (s *Scheduler) RunOne(ctx context.Context, taskID uuid.UUID) (*DispatchResult, error) {
	task, err := s.taskStore.ClaimForDispatch(ctx, taskID, s.now(), s.cfg.ClaimTTL)
	if err != nil {
		return nil, err
	}

	return s.dispatcher.Dispatch(ctx, task)
}

// Run executes one batch: claim due tasks, dispatch each at most once,
// aggregate counts. Tasks already claimed by an overlapping run are simply
// not returned by the claim and are skipped without error.
func (s *Scheduler) Run(ctx context.Context) (*RunSummary, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	started := s.now()

	tasks, err := s.taskStore.ClaimDue(ctx, started, s.cfg.BatchSize, s.cfg.ClaimTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due reminders: %w", err)
	}

	summary := &RunSummary{Processed: len(tasks)}
	if len(tasks) == 0 {
		log.Debug("no due reminders")
		return summary, nil
	}

	log.Info("batch run claimed due reminders", slog.Int("claimed", len(tasks)))

	jobs := make(chan *domain.Task)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := s.cfg.WorkerCount
	if workers > len(tasks) {
		workers = len(tasks)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobs {
				result, err := s.dispatcher.Dispatch(ctx, task)

				mu.Lock()
				switch {
				case errors.Is(err, store.ErrClaimConflict):
					// Another writer took the task after the claim; its
					// write wins and the outcome was discarded.
					summary.Skipped++
				case err != nil:
					// Outcome was not recorded; the claim TTL will release
					// the task for a later run.
					summary.Failed++
				case result.Sent:
					summary.Sent++
				default:
					summary.Failed++
				}
				mu.Unlock()

				switch {
				case errors.Is(err, store.ErrClaimConflict):
					log.Info("task skipped, claim lost to a concurrent writer",
						slog.String("task_id", task.ID.String()))
				case err != nil:
					log.Error("dispatch error in batch run",
						slog.String("task_id", task.ID.String()),
						slog.String("error", redact.Error(err)))
				}
			}
		}()
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	wg.Wait()

	log.Info("batch run completed",
		slog.Int("processed", summary.Processed),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped),
		slog.Duration("elapsed", s.now().Sub(started)))

	return summary, nil
}
