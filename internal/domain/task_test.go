package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotery/reminder-api/internal/domain"
)

func newTestTask(t *testing.T, channel domain.ReminderChannel) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), "Send updated quote", "+15550100", channel)
	require.NoError(t, err)
	return task
}

func TestNewTask(t *testing.T) {
	t.Parallel()

	t.Run("creates task with no active reminder", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)

		assert.Equal(t, domain.ReminderIdle, task.ReminderStatus)
		assert.Nil(t, task.NextReminderAt)
		assert.Zero(t, task.AttemptCount)
	})

	t.Run("rejects empty quote ID", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewTask(uuid.Nil, "Send updated quote", "x@y.test", domain.ChannelEmail)
		assert.ErrorIs(t, err, domain.ErrTaskQuoteIDEmpty)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewTask(uuid.New(), "", "x@y.test", domain.ChannelEmail)
		assert.ErrorIs(t, err, domain.ErrTaskTitleEmpty)
	})

	t.Run("rejects unknown channel", func(t *testing.T) {
		t.Parallel()
		_, err := domain.NewTask(uuid.New(), "Send updated quote", "x@y.test", domain.ReminderChannel("carrier-pigeon"))
		assert.ErrorIs(t, err, domain.ErrInvalidChannel)
	})
}

func TestScheduleReminder(t *testing.T) {
	t.Parallel()

	t.Run("moves idle task to scheduled", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		dueAt := time.Now().UTC().Add(time.Hour)

		require.NoError(t, task.ScheduleReminder(dueAt))

		assert.Equal(t, domain.ReminderScheduled, task.ReminderStatus)
		require.NotNil(t, task.NextReminderAt)
		assert.WithinDuration(t, dueAt, *task.NextReminderAt, time.Second)
	})

	t.Run("resets attempt counter on reschedule", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))
		require.NoError(t, task.RecordTransientFailure("provider unavailable", time.Now().UTC().Add(time.Minute), 3))
		require.Equal(t, 1, task.AttemptCount)

		require.NoError(t, task.ScheduleReminder(time.Now().UTC().Add(time.Hour)))

		assert.Zero(t, task.AttemptCount)
		assert.Empty(t, task.LastReminderError)
	})

	t.Run("rejects channel none", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelNone)
		assert.ErrorIs(t, task.ScheduleReminder(time.Now().UTC()), domain.ErrInvalidChannel)
	})

	t.Run("rejects empty recipient", func(t *testing.T) {
		t.Parallel()
		task, err := domain.NewTask(uuid.New(), "Send updated quote", "", domain.ChannelChat)
		require.NoError(t, err)
		assert.ErrorIs(t, task.ScheduleReminder(time.Now().UTC()), domain.ErrRecipientEmpty)
	})

	t.Run("rejects terminal states", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		task.CancelReminder()

		assert.ErrorIs(t, task.ScheduleReminder(time.Now().UTC()), domain.ErrInvalidTransition)
	})
}

func TestMarkSent(t *testing.T) {
	t.Parallel()

	t.Run("clears due time on success", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))

		require.NoError(t, task.MarkSent())

		assert.Equal(t, domain.ReminderSent, task.ReminderStatus)
		assert.Nil(t, task.NextReminderAt)
	})

	t.Run("rejects non-scheduled task", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		assert.ErrorIs(t, task.MarkSent(), domain.ErrInvalidTransition)
	})
}

func TestRecordTransientFailure(t *testing.T) {
	t.Parallel()

	t.Run("reschedules while attempts remain", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))
		nextAt := time.Now().UTC().Add(15 * time.Minute)

		require.NoError(t, task.RecordTransientFailure("provider unavailable", nextAt, 3))

		assert.Equal(t, domain.ReminderScheduled, task.ReminderStatus)
		assert.Equal(t, 1, task.AttemptCount)
		assert.Equal(t, "provider unavailable", task.LastReminderError)
		require.NotNil(t, task.NextReminderAt)
		assert.WithinDuration(t, nextAt, *task.NextReminderAt, time.Second)
	})

	t.Run("fails task when attempt budget is exhausted", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))

		for i := 0; i < 2; i++ {
			require.NoError(t, task.RecordTransientFailure("provider unavailable", time.Now().UTC().Add(time.Minute), 3))
			require.Equal(t, domain.ReminderScheduled, task.ReminderStatus)
		}
		require.NoError(t, task.RecordTransientFailure("provider unavailable", time.Now().UTC().Add(time.Minute), 3))

		assert.Equal(t, domain.ReminderFailed, task.ReminderStatus)
		assert.Equal(t, 3, task.AttemptCount)
		assert.Nil(t, task.NextReminderAt)
	})
}

func TestRecordPermanentFailure(t *testing.T) {
	t.Parallel()

	task := newTestTask(t, domain.ChannelEmail)
	require.NoError(t, task.ScheduleReminder(time.Now().UTC()))

	require.NoError(t, task.RecordPermanentFailure("invalid recipient"))

	assert.Equal(t, domain.ReminderFailed, task.ReminderStatus)
	assert.Nil(t, task.NextReminderAt)
	assert.Equal(t, "invalid recipient", task.LastReminderError)
	assert.Zero(t, task.AttemptCount, "permanent failures do not consume the retry budget")
}

func TestMarkReplied(t *testing.T) {
	t.Parallel()

	t.Run("transitions sent to replied", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))
		require.NoError(t, task.MarkSent())

		require.NoError(t, task.MarkReplied())
		assert.Equal(t, domain.ReminderReplied, task.ReminderStatus)
	})

	t.Run("rejects tasks that were never sent", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		assert.ErrorIs(t, task.MarkReplied(), domain.ErrInvalidTransition)
	})
}

func TestCancelReminder(t *testing.T) {
	t.Parallel()

	t.Run("cancels a scheduled reminder", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))

		task.CancelReminder()

		assert.Equal(t, domain.ReminderCancelled, task.ReminderStatus)
		assert.Nil(t, task.NextReminderAt)
	})

	t.Run("is a no-op on terminal states", func(t *testing.T) {
		t.Parallel()
		task := newTestTask(t, domain.ChannelChat)
		require.NoError(t, task.ScheduleReminder(time.Now().UTC()))
		require.NoError(t, task.RecordPermanentFailure("invalid recipient"))

		task.CancelReminder()

		assert.Equal(t, domain.ReminderFailed, task.ReminderStatus)
	})
}

func TestResetReminder(t *testing.T) {
	t.Parallel()

	task := newTestTask(t, domain.ChannelChat)
	require.NoError(t, task.ScheduleReminder(time.Now().UTC()))
	require.NoError(t, task.RecordPermanentFailure("invalid recipient"))

	task.ResetReminder()

	assert.Equal(t, domain.ReminderIdle, task.ReminderStatus)
	assert.Zero(t, task.AttemptCount)
	assert.Empty(t, task.LastReminderError)
	require.NoError(t, task.ScheduleReminder(time.Now().UTC().Add(time.Hour)),
		"reset must reopen scheduling after a terminal state")
}

func TestReminderStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.ReminderFailed.Terminal())
	assert.True(t, domain.ReminderReplied.Terminal())
	assert.True(t, domain.ReminderCancelled.Terminal())
	assert.False(t, domain.ReminderIdle.Terminal())
	assert.False(t, domain.ReminderScheduled.Terminal())
	assert.False(t, domain.ReminderSent.Terminal(), "sent may still become replied")
}
