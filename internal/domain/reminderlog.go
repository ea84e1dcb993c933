package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReminderLogEntry validation errors
var (
	// ErrLogEntryIDEmpty is returned when a log entry ID is empty or nil.
	ErrLogEntryIDEmpty = errors.New("log entry ID cannot be empty")

	// ErrLogEntryTaskIDEmpty is returned when a log entry's task ID is empty or nil.
	ErrLogEntryTaskIDEmpty = errors.New("log entry task ID cannot be empty")

	// ErrInvalidDirection is returned when a log entry direction is not
	// outbound or inbound.
	ErrInvalidDirection = errors.New("invalid log entry direction")

	// ErrInvalidDeliveryStatus is returned when an outbound log entry status
	// is not one of the supported values.
	ErrInvalidDeliveryStatus = errors.New("invalid delivery status")

	// ErrLogEntryBodyEmpty is returned when a log entry has no message body.
	ErrLogEntryBodyEmpty = errors.New("log entry message body cannot be empty")
)

// LogDirection distinguishes dispatch attempts from received replies.
type LogDirection string

const (
	DirectionOutbound LogDirection = "outbound"
	DirectionInbound  LogDirection = "inbound"
)

// DeliveryStatus is the outcome recorded on an outbound log entry.
// Inbound entries always represent a received message and carry StatusSent
// by convention.
type DeliveryStatus string

const (
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
	StatusQueued DeliveryStatus = "queued"
)

// ReminderLogEntry is one row of a task's append-only reminder audit trail.
// Entries are never updated or deleted once inserted.
type ReminderLogEntry struct {
	ID                uuid.UUID       `json:"id"`
	TaskID            uuid.UUID       `json:"task_id"`
	Direction         LogDirection    `json:"direction"`
	Channel           ReminderChannel `json:"channel"`
	Status            DeliveryStatus  `json:"status"`
	MessageBody       string          `json:"message_body"`
	ProviderMessageID string          `json:"provider_message_id,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`
	ReplyFrom         string          `json:"reply_from,omitempty"`
	SentAt            time.Time       `json:"sent_at"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewOutboundEntry builds the audit record for one dispatch attempt.
// providerMessageID is empty for failed attempts; errorMessage is empty for
// successful ones.
func NewOutboundEntry(
	taskID uuid.UUID,
	channel ReminderChannel,
	status DeliveryStatus,
	body, providerMessageID, errorMessage string,
) (*ReminderLogEntry, error) {
	now := time.Now().UTC()
	e := &ReminderLogEntry{
		ID:                uuid.New(),
		TaskID:            taskID,
		Direction:         DirectionOutbound,
		Channel:           channel,
		Status:            status,
		MessageBody:       body,
		ProviderMessageID: providerMessageID,
		ErrorMessage:      errorMessage,
		SentAt:            now,
		CreatedAt:         now,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// NewInboundEntry builds the audit record for a received reply. The raw
// provider event is preserved as metadata for audit and debugging.
func NewInboundEntry(
	taskID uuid.UUID,
	channel ReminderChannel,
	body, providerMessageID, replyFrom string,
	metadata json.RawMessage,
) (*ReminderLogEntry, error) {
	now := time.Now().UTC()
	e := &ReminderLogEntry{
		ID:                uuid.New(),
		TaskID:            taskID,
		Direction:         DirectionInbound,
		Channel:           channel,
		Status:            StatusSent,
		MessageBody:       body,
		ProviderMessageID: providerMessageID,
		ReplyFrom:         replyFrom,
		Metadata:          metadata,
		SentAt:            now,
		CreatedAt:         now,
	}

	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e, nil
}

// Validate checks if the ReminderLogEntry has valid data.
// Returns an error if any field fails validation.
func (e *ReminderLogEntry) Validate() error {
	if e.ID == uuid.Nil {
		return ErrLogEntryIDEmpty
	}

	if e.TaskID == uuid.Nil {
		return ErrLogEntryTaskIDEmpty
	}

	if e.Direction != DirectionOutbound && e.Direction != DirectionInbound {
		return ErrInvalidDirection
	}

	switch e.Status {
	case StatusSent, StatusFailed, StatusQueued:
	default:
		return ErrInvalidDeliveryStatus
	}

	if !e.Channel.Valid() {
		return ErrInvalidChannel
	}

	if e.MessageBody == "" {
		return ErrLogEntryBodyEmpty
	}

	return nil
}
