package api

import (
	"encoding/json"
	"time"

	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/service"
)

// RunSummaryResponse is the body of a successful batch-run request.
type RunSummaryResponse struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// DispatchResponse is the body of a successful manual re-trigger. Sent=false
// with a failure reason is still HTTP 200: the dispatch attempt itself
// completed and its outcome was recorded.
type DispatchResponse struct {
	Sent              bool   `json:"sent"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`
}

// ReminderLogEntryResponse represents one reminder log row.
type ReminderLogEntryResponse struct {
	ID                string          `json:"id"`
	TaskID            string          `json:"task_id"`
	Direction         string          `json:"direction"`
	Channel           string          `json:"channel"`
	Status            string          `json:"status"`
	MessageBody       string          `json:"message_body"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	ReplyFrom         string          `json:"reply_from,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	SentAt            time.Time       `json:"sent_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

// WebhookSummaryResponse reports per-event outcomes of one webhook request.
type WebhookSummaryResponse struct {
	Events   int `json:"events"`
	Recorded int `json:"recorded"`
	Skipped  int `json:"skipped"`
}

// logEntryToResponse converts a domain.ReminderLogEntry to its DTO.
func logEntryToResponse(entry *domain.ReminderLogEntry) ReminderLogEntryResponse {
	return ReminderLogEntryResponse{
		ID:                entry.ID.String(),
		TaskID:            entry.TaskID.String(),
		Direction:         string(entry.Direction),
		Channel:           string(entry.Channel),
		Status:            string(entry.Status),
		MessageBody:       entry.MessageBody,
		ProviderMessageID: entry.ProviderMessageID,
		ErrorMessage:      entry.ErrorMessage,
		ReplyFrom:         entry.ReplyFrom,
		Metadata:          entry.Metadata,
		SentAt:            entry.SentAt,
		CreatedAt:         entry.CreatedAt,
	}
}

// runSummaryToResponse converts a service.RunSummary to its DTO.
func runSummaryToResponse(summary *service.RunSummary) RunSummaryResponse {
	return RunSummaryResponse{
		Processed: summary.Processed,
		Sent:      summary.Sent,
		Failed:    summary.Failed,
	}
}
