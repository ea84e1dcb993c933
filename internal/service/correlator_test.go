package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotery/reminder-api/internal/domain"
)

// sentTask builds a task whose reminder has been dispatched and is awaiting
// a reply.
func sentTask(t *testing.T) *domain.Task {
	t.Helper()
	task := scheduledTask(t, domain.ChannelChat)
	require.NoError(t, task.MarkSent())
	return task
}

func newTestCorrelator(t *testing.T, taskStore *fakeTaskStore, logStore *fakeLogStore) *Correlator {
	t.Helper()
	correlator, err := NewCorrelator(taskStore, logStore, testLogger())
	require.NoError(t, err)
	return correlator
}

func TestCorrelatorRecordsReply(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{
		"eventType": "MESSAGE_RECEIVED",
		"messageId": "in-42",
		"originationNumber": "+15550101",
		"messageBody": "yes, send it over",
		"attributes": {"taskId": %q}
	}`, task.ID)

	summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, &WebhookSummary{Events: 1, Recorded: 1}, summary)

	entries := logStore.entriesForTask(task.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DirectionInbound, entries[0].Direction)
	assert.Equal(t, "yes, send it over", entries[0].MessageBody)
	assert.Equal(t, "in-42", entries[0].ProviderMessageID)
	assert.Equal(t, "+15550101", entries[0].ReplyFrom)
	assert.JSONEq(t, payload, string(entries[0].Metadata))

	stored, err := taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderReplied, stored.ReminderStatus)
}

func TestCorrelatorTaskRefLocations(t *testing.T) {
	t.Parallel()

	payloads := map[string]string{
		"attributes.task_id": `{"eventType":"message_received","messageBody":"ok","attributes":{"task_id":%q}}`,
		"metadata.taskId":    `{"eventType":"message.received","messageBody":"ok","metadata":{"taskId":%q}}`,
		"top-level taskId":   `{"eventType":"MESSAGE_RECEIVED","messageBody":"ok","taskId":%q}`,
		"top-level task_id":  `{"eventType":"MESSAGE_RECEIVED","messageBody":"ok","task_id":%q}`,
		"referenceId":        `{"eventType":"MESSAGE_RECEIVED","messageBody":"ok","referenceId":%q}`,
	}

	for name, template := range payloads {
		template := template
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			task := sentTask(t)
			taskStore := newFakeTaskStore(task)
			logStore := newFakeLogStore()
			correlator := newTestCorrelator(t, taskStore, logStore)

			payload := fmt.Sprintf(template, task.ID)
			summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Recorded)
			assert.Len(t, logStore.entriesForTask(task.ID), 1)
		})
	}
}

func TestCorrelatorStructuredRefWinsOverAliases(t *testing.T) {
	t.Parallel()

	attrTask := sentTask(t)
	aliasTask := sentTask(t)
	taskStore := newFakeTaskStore(attrTask, aliasTask)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{
		"eventType": "MESSAGE_RECEIVED",
		"messageBody": "ok",
		"taskId": %q,
		"attributes": {"taskId": %q}
	}`, aliasTask.ID, attrTask.ID)

	_, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err)

	assert.Len(t, logStore.entriesForTask(attrTask.ID), 1)
	assert.Empty(t, logStore.entriesForTask(aliasTask.ID))
}

func TestCorrelatorIgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{
		"eventType": "MESSAGE_DELIVERED",
		"messageBody": "ok",
		"attributes": {"taskId": %q}
	}`, task.ID)

	summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, &WebhookSummary{Events: 1, Skipped: 1}, summary)
	assert.Empty(t, logStore.entriesForTask(task.ID))

	stored, err := taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, stored.ReminderStatus)
}

func TestCorrelatorBatchIsolation(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	// One good event, one with no task reference, one unparseable.
	payload := fmt.Sprintf(`[
		{"eventType": "MESSAGE_RECEIVED", "messageBody": "ok", "attributes": {"taskId": %q}},
		{"eventType": "MESSAGE_RECEIVED", "messageBody": "orphan reply"},
		"not an object"
	]`, task.ID)

	summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, &WebhookSummary{Events: 3, Recorded: 1, Skipped: 2}, summary)
	assert.Len(t, logStore.entriesForTask(task.ID), 1)
}

func TestCorrelatorEnvelopePayload(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{"events": [
		{"eventType": "MESSAGE_RECEIVED", "messageBody": "ok", "taskId": %q}
	]}`, task.ID)

	summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, &WebhookSummary{Events: 1, Recorded: 1}, summary)
}

func TestCorrelatorMalformedPayload(t *testing.T) {
	t.Parallel()

	correlator := newTestCorrelator(t, newFakeTaskStore(), newFakeLogStore())

	_, err := correlator.HandleProviderEvents(context.Background(), []byte(`{invalid`))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestCorrelatorDuplicateDeliveryIsBenign(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{"eventType":"MESSAGE_RECEIVED","messageBody":"ok","taskId":%q}`, task.ID)

	for i := 0; i < 2; i++ {
		summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Recorded)
	}

	// Two log rows, one state transition.
	assert.Len(t, logStore.entriesForTask(task.ID), 2)
	stored, err := taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderReplied, stored.ReminderStatus)
}

func TestCorrelatorLogInsertFailureSkipsEvent(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	logStore.insertErr = errors.New("connection reset")
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{"eventType":"MESSAGE_RECEIVED","messageBody":"ok","taskId":%q}`, task.ID)

	summary, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err, "a per-event failure never fails the request")
	assert.Equal(t, &WebhookSummary{Events: 1, Skipped: 1}, summary)

	stored, err := taskStore.GetByID(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReminderSent, stored.ReminderStatus,
		"no state advance without its log row")
}

func TestCorrelatorNumericProviderIDs(t *testing.T) {
	t.Parallel()

	task := sentTask(t)
	taskStore := newFakeTaskStore(task)
	logStore := newFakeLogStore()
	correlator := newTestCorrelator(t, taskStore, logStore)

	payload := fmt.Sprintf(`{"eventType":"MESSAGE_RECEIVED","messageBody":"ok","taskId":%q,"messageId":981234}`, task.ID)

	_, err := correlator.HandleProviderEvents(context.Background(), []byte(payload))
	require.NoError(t, err)

	entries := logStore.entriesForTask(task.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "981234", entries[0].ProviderMessageID)
}
