package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/redact"
	"github.com/quotery/reminder-api/internal/store"
)

// ErrMalformedPayload is returned when the webhook body cannot be parsed at
// the top level. Per-event problems never surface as this error.
var ErrMalformedPayload = errors.New("malformed provider payload")

// messageReceivedTypes are the provider event types this system correlates.
// Everything else is skipped silently.
var messageReceivedTypes = map[string]bool{
	"MESSAGE_RECEIVED": true,
	"message_received": true,
	"message.received": true,
}

// taskRefExtractor resolves the originating task ID from one known location
// in a provider event. Extractors are tried in order; the first non-empty
// value wins.
type taskRefExtractor struct {
	name    string
	extract func(event map[string]any) string
}

// taskRefExtractors is the ordered list of metadata locations a task
// reference may live in: structured attributes first, then top-level
// aliases.
var taskRefExtractors = []taskRefExtractor{
	{"attributes.taskId", nestedString("attributes", "taskId")},
	{"attributes.task_id", nestedString("attributes", "task_id")},
	{"metadata.taskId", nestedString("metadata", "taskId")},
	{"taskId", topLevelString("taskId")},
	{"task_id", topLevelString("task_id")},
	{"referenceId", topLevelString("referenceId")},
}

// WebhookSummary aggregates per-event outcomes of one webhook request.
type WebhookSummary struct {
	Events   int `json:"events"`
	Recorded int `json:"recorded"`
	Skipped  int `json:"skipped"`
}

// Correlator maps asynchronous provider events back to tasks: it records
// inbound replies in the reminder log and advances Sent tasks to Replied.
//
// The provider delivers at least once; a redelivered event produces a
// duplicate inbound log row, which is accepted as benign (the log is
// append-only and MarkReplied is conditional, so task state is unaffected).
type Correlator struct {
	taskStore store.TaskStore
	logStore  store.ReminderLogStore
	logger    *slog.Logger
}

// NewCorrelator creates a Correlator with the given dependencies.
func NewCorrelator(
	taskStore store.TaskStore,
	logStore store.ReminderLogStore,
	logger *slog.Logger,
) (*Correlator, error) {
	if taskStore == nil || logStore == nil {
		return nil, errors.New("correlator requires a task store and a log store")
	}
	if logger == nil {
		return nil, errors.New("correlator requires a logger")
	}

	return &Correlator{
		taskStore: taskStore,
		logStore:  logStore,
		logger:    logger.With(slog.String("component", "correlator")),
	}, nil
}

// HandleProviderEvents processes a webhook body holding a single event or a
// batch. Each event is handled independently: a failure in one (missing task
// reference, store error) is logged and skipped without affecting the rest.
// Only a top-level parse failure returns an error.
func (c *Correlator) HandleProviderEvents(ctx context.Context, payload []byte) (*WebhookSummary, error) {
	events, err := normalizeEvents(payload)
	if err != nil {
		return nil, err
	}

	log := logger.FromContextOrDefault(ctx, c.logger)
	summary := &WebhookSummary{Events: len(events)}

	for _, raw := range events {
		recorded, err := c.handleEvent(ctx, raw)
		if err != nil {
			log.Warn("skipping provider event",
				slog.String("error", redact.Error(err)))
			summary.Skipped++
			continue
		}
		if recorded {
			summary.Recorded++
		} else {
			summary.Skipped++
		}
	}

	return summary, nil
}

// handleEvent processes one event. Returns (false, nil) for event types this
// system ignores, and an error when a message-received event cannot be
// recorded.
func (c *Correlator) handleEvent(ctx context.Context, raw json.RawMessage) (bool, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		return false, fmt.Errorf("unparseable event: %w", err)
	}

	eventType := firstString(event, "eventType", "event_type", "type")
	if !messageReceivedTypes[eventType] {
		log.Debug("ignoring provider event",
			slog.String("event_type", eventType))
		return false, nil
	}

	taskID, extractorName, err := extractTaskRef(event)
	if err != nil {
		// No log row is written for an uncorrelatable event.
		return false, err
	}

	body := firstString(event, "messageBody", "body", "text", "message")
	if body == "" {
		body = "(empty message)"
	}
	replyFrom := firstString(event, "originationNumber", "from", "sender")
	providerMessageID := firstString(event, "messageId", "providerMessageId", "inboundMessageId")

	channel := domain.ReminderChannel(firstString(event, "channel"))
	if !channel.Valid() || channel == domain.ChannelNone {
		channel = domain.ChannelChat
	}

	entry, err := domain.NewInboundEntry(taskID, channel, body, providerMessageID, replyFrom, raw)
	if err != nil {
		return false, fmt.Errorf("failed to build inbound log entry: %w", err)
	}

	if err := c.logStore.Insert(ctx, entry); err != nil {
		return false, fmt.Errorf("failed to record inbound reply for task %s: %w", taskID, err)
	}

	replied, err := c.taskStore.MarkReplied(ctx, taskID)
	if err != nil && !store.IsNotFoundError(err) {
		// The reply is in the log; the state advance failing is reported
		// but does not undo the record.
		log.Warn("failed to mark task replied",
			slog.String("task_id", taskID.String()),
			slog.String("error", redact.Error(err)))
	}

	log.Info("recorded inbound reply",
		slog.String("task_id", taskID.String()),
		slog.String("task_ref_source", extractorName),
		slog.Bool("replied", replied))

	return true, nil
}

// normalizeEvents accepts a single JSON object, a JSON array of events, or
// an envelope object with an "events" array, and returns the individual
// events.
func normalizeEvents(payload []byte) ([]json.RawMessage, error) {
	var batch []json.RawMessage
	if err := json.Unmarshal(payload, &batch); err == nil {
		return batch, nil
	}

	var envelope struct {
		Events []json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.Events != nil {
		return envelope.Events, nil
	}

	// A lone event object.
	var single map[string]any
	if err := json.Unmarshal(payload, &single); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return []json.RawMessage{json.RawMessage(payload)}, nil
}

// extractTaskRef runs the ordered extractor list over the event.
func extractTaskRef(event map[string]any) (uuid.UUID, string, error) {
	for _, ex := range taskRefExtractors {
		value := ex.extract(event)
		if value == "" {
			continue
		}

		id, err := uuid.Parse(value)
		if err != nil {
			return uuid.Nil, "", fmt.Errorf("task reference at %s is not a valid ID: %w", ex.name, err)
		}
		return id, ex.name, nil
	}

	return uuid.Nil, "", errors.New("no task reference found in event")
}

func topLevelString(key string) func(map[string]any) string {
	return func(event map[string]any) string {
		return stringValue(event[key])
	}
}

func nestedString(parent, key string) func(map[string]any) string {
	return func(event map[string]any) string {
		nested, ok := event[parent].(map[string]any)
		if !ok {
			return ""
		}
		return stringValue(nested[key])
	}
}

// firstString returns the first non-empty string among the given keys.
func firstString(event map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringValue(event[key]); s != "" {
			return s
		}
	}
	return ""
}

// stringValue renders scalar JSON values as strings; providers are not
// consistent about quoting identifiers.
func stringValue(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return fmt.Sprintf("%.0f", value)
	default:
		return ""
	}
}
