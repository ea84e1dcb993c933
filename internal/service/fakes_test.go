package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/sender"
	"github.com/quotery/reminder-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scheduledTask builds a task whose reminder is already due.
func scheduledTask(t *testing.T, channel domain.ReminderChannel) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), "Send updated quote", "+15550100", channel)
	require.NoError(t, err)
	require.NoError(t, task.ScheduleReminder(time.Now().UTC().Add(-time.Minute)))
	return task
}

// fakeTaskStore is an in-memory store.TaskStore with the same claim
// semantics as the PostgreSQL implementation.
type fakeTaskStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*domain.Task
	claimed map[uuid.UUID]time.Time

	claimDueErr    error
	updateErr      error
	markRepliedErr error
}

func newFakeTaskStore(tasks ...*domain.Task) *fakeTaskStore {
	s := &fakeTaskStore{
		tasks:   make(map[uuid.UUID]*domain.Task),
		claimed: make(map[uuid.UUID]time.Time),
	}
	for _, task := range tasks {
		clone := *task
		s.tasks[task.ID] = &clone
	}
	return s
}

func (s *fakeTaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return store.ErrDuplicate
	}
	clone := *task
	s.tasks[task.ID] = &clone
	return nil
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (s *fakeTaskStore) UpdateReminderState(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	clone := *task
	s.tasks[task.ID] = &clone
	delete(s.claimed, task.ID)
	return nil
}

func (s *fakeTaskStore) UpdateReminderOutcome(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return s.updateErr
	}
	current, ok := s.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	if _, held := s.claimed[task.ID]; !held ||
		current.ReminderStatus != domain.ReminderScheduled {
		return store.ErrClaimConflict
	}
	clone := *task
	s.tasks[task.ID] = &clone
	delete(s.claimed, task.ID)
	return nil
}

func (s *fakeTaskStore) ClaimDue(
	ctx context.Context,
	now time.Time,
	limit int,
	claimTTL time.Duration,
) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimDueErr != nil {
		return nil, s.claimDueErr
	}

	var due []*domain.Task
	for _, task := range s.tasks {
		if task.ReminderStatus != domain.ReminderScheduled ||
			task.NextReminderAt == nil || task.NextReminderAt.After(now) {
			continue
		}
		if at, ok := s.claimed[task.ID]; ok && now.Sub(at) < claimTTL {
			continue
		}
		due = append(due, task)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].NextReminderAt.Before(*due[j].NextReminderAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*domain.Task, 0, len(due))
	for _, task := range due {
		s.claimed[task.ID] = now
		clone := *task
		claimed = append(claimed, &clone)
	}
	return claimed, nil
}

func (s *fakeTaskStore) ClaimForDispatch(
	ctx context.Context,
	id uuid.UUID,
	now time.Time,
	claimTTL time.Duration,
) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if task.ReminderStatus != domain.ReminderScheduled {
		return nil, store.ErrClaimConflict
	}
	if at, ok := s.claimed[id]; ok && now.Sub(at) < claimTTL {
		return nil, store.ErrClaimConflict
	}

	s.claimed[id] = now
	clone := *task
	return &clone, nil
}

func (s *fakeTaskStore) MarkReplied(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markRepliedErr != nil {
		return false, s.markRepliedErr
	}
	task, ok := s.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if task.ReminderStatus != domain.ReminderSent {
		return false, nil
	}
	task.ReminderStatus = domain.ReminderReplied
	return true, nil
}

func (s *fakeTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return s
}

// claimForTest claims the task the way a batch run would before dispatching
// it, returning the claimed snapshot.
func claimForTest(t *testing.T, s *fakeTaskStore, id uuid.UUID) *domain.Task {
	t.Helper()
	task, err := s.ClaimForDispatch(context.Background(), id, time.Now().UTC(), time.Minute)
	require.NoError(t, err)
	return task
}

// fakeLogStore is an in-memory store.ReminderLogStore.
type fakeLogStore struct {
	mu        sync.Mutex
	entries   []*domain.ReminderLogEntry
	insertErr error
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{}
}

func (s *fakeLogStore) Insert(ctx context.Context, entry *domain.ReminderLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return s.insertErr
	}
	clone := *entry
	s.entries = append(s.entries, &clone)
	return nil
}

func (s *fakeLogStore) ListForTask(
	ctx context.Context,
	taskID uuid.UUID,
	limit int,
) ([]*domain.ReminderLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.ReminderLogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].TaskID == taskID {
			clone := *s.entries[i]
			matched = append(matched, &clone)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *fakeLogStore) WithTx(tx *sql.Tx) store.ReminderLogStore {
	return s
}

func (s *fakeLogStore) entriesForTask(taskID uuid.UUID) []*domain.ReminderLogEntry {
	entries, _ := s.ListForTask(context.Background(), taskID, 0)
	return entries
}

// fakeTxRunner executes the function directly with a nil transaction; the
// fake stores ignore WithTx, so atomicity is not simulated but ordering is.
type fakeTxRunner struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	r.mu.Lock()
	r.calls++
	err := r.err
	r.mu.Unlock()

	if err != nil {
		return err
	}
	return fn(ctx, nil)
}

// fakeSender returns a canned result or error.
type fakeSender struct {
	mu     sync.Mutex
	result *sender.Result
	err    error

	calls         int
	lastRecipient string
	lastBody      string
}

func (s *fakeSender) Send(ctx context.Context, recipient, body string) (*sender.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	s.lastRecipient = recipient
	s.lastBody = body
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// fakeTaskDispatcher records dispatches without touching any store.
type fakeTaskDispatcher struct {
	mu         sync.Mutex
	dispatched []uuid.UUID
	results    map[uuid.UUID]*DispatchResult
	errs       map[uuid.UUID]error
}

func newFakeTaskDispatcher() *fakeTaskDispatcher {
	return &fakeTaskDispatcher{
		results: make(map[uuid.UUID]*DispatchResult),
		errs:    make(map[uuid.UUID]error),
	}
}

func (d *fakeTaskDispatcher) Dispatch(ctx context.Context, task *domain.Task) (*DispatchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dispatched = append(d.dispatched, task.ID)
	if err, ok := d.errs[task.ID]; ok {
		return nil, err
	}
	if result, ok := d.results[task.ID]; ok {
		return result, nil
	}
	return &DispatchResult{Sent: true, ProviderMessageID: "msg-" + task.ID.String()[:8]}, nil
}
