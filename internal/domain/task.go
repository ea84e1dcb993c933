package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Task-specific validation errors
var (
	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskQuoteIDEmpty is returned when a task's quote ID is empty or nil.
	ErrTaskQuoteIDEmpty = errors.New("task quote ID cannot be empty")

	// ErrTaskTitleEmpty is returned when a task's title is empty.
	ErrTaskTitleEmpty = errors.New("task title cannot be empty")

	// ErrInvalidChannel is returned when a reminder channel is not one of
	// the supported values.
	ErrInvalidChannel = errors.New("invalid reminder channel")

	// ErrInvalidReminderStatus is returned when a reminder status is not one
	// of the supported values.
	ErrInvalidReminderStatus = errors.New("invalid reminder status")

	// ErrRecipientEmpty is returned when a reminder is scheduled for a task
	// with no recipient address.
	ErrRecipientEmpty = errors.New("task recipient cannot be empty")

	// ErrInvalidTransition is returned when a reminder state transition is
	// not permitted from the task's current status.
	ErrInvalidTransition = errors.New("invalid reminder state transition")
)

// ReminderChannel identifies the delivery medium for a task's reminder.
type ReminderChannel string

const (
	ChannelNone  ReminderChannel = "none"
	ChannelChat  ReminderChannel = "chat"
	ChannelEmail ReminderChannel = "email"
)

// Valid reports whether the channel is one of the supported values.
func (c ReminderChannel) Valid() bool {
	switch c {
	case ChannelNone, ChannelChat, ChannelEmail:
		return true
	}
	return false
}

// ReminderStatus is the reminder state of a task.
//
// Transitions:
//
//	Idle      -> Scheduled              (channel set and due time computed)
//	Scheduled -> Sent                   (dispatch succeeded)
//	Scheduled -> Scheduled              (transient failure, attempts left)
//	Scheduled -> Failed                 (permanent failure or attempts exhausted)
//	Sent      -> Replied                (inbound reply correlated)
//	any non-terminal -> Cancelled       (task done/deleted or channel cleared)
//
// Replied, Cancelled and Failed are terminal.
type ReminderStatus string

const (
	ReminderIdle      ReminderStatus = "idle"
	ReminderScheduled ReminderStatus = "scheduled"
	ReminderSent      ReminderStatus = "sent"
	ReminderFailed    ReminderStatus = "failed"
	ReminderReplied   ReminderStatus = "replied"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Valid reports whether the status is one of the supported values.
func (s ReminderStatus) Valid() bool {
	switch s {
	case ReminderIdle, ReminderScheduled, ReminderSent,
		ReminderFailed, ReminderReplied, ReminderCancelled:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further scheduling.
// Sent is not terminal: it may still transition to Replied, but it schedules
// no further dispatch on its own.
func (s ReminderStatus) Terminal() bool {
	switch s {
	case ReminderFailed, ReminderReplied, ReminderCancelled:
		return true
	}
	return false
}

// Task is a unit of work tied to a quote that may carry a scheduled reminder.
// Reminder state is mutated only through the transition methods below so the
// status, next-reminder timestamp and attempt counter stay consistent.
type Task struct {
	ID                uuid.UUID       `json:"id"`
	QuoteID           uuid.UUID       `json:"quote_id"`
	Title             string          `json:"title"`
	Recipient         string          `json:"recipient"`
	ReminderChannel   ReminderChannel `json:"reminder_channel"`
	ReminderStatus    ReminderStatus  `json:"reminder_status"`
	NextReminderAt    *time.Time      `json:"next_reminder_at,omitempty"`
	AttemptCount      int             `json:"attempt_count"`
	LastReminderError string          `json:"last_reminder_error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewTask creates a task with no active reminder.
// Returns an error if validation fails.
func NewTask(quoteID uuid.UUID, title, recipient string, channel ReminderChannel) (*Task, error) {
	now := time.Now().UTC()
	t := &Task{
		ID:              uuid.New(),
		QuoteID:         quoteID,
		Title:           title,
		Recipient:       recipient,
		ReminderChannel: channel,
		ReminderStatus:  ReminderIdle,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if t.QuoteID == uuid.Nil {
		return ErrTaskQuoteIDEmpty
	}

	if t.Title == "" {
		return ErrTaskTitleEmpty
	}

	if !t.ReminderChannel.Valid() {
		return ErrInvalidChannel
	}

	if !t.ReminderStatus.Valid() {
		return ErrInvalidReminderStatus
	}

	return nil
}

// ScheduleReminder moves the task into the Scheduled state with the given due
// time and resets the attempt counter. Permitted from Idle and from any
// non-terminal state; terminal states require an explicit external
// re-configuration and are rejected here.
func (t *Task) ScheduleReminder(dueAt time.Time) error {
	if t.ReminderChannel == ChannelNone {
		return ErrInvalidChannel
	}

	if t.Recipient == "" {
		return ErrRecipientEmpty
	}

	if t.ReminderStatus.Terminal() {
		return ErrInvalidTransition
	}

	due := dueAt.UTC()
	t.ReminderStatus = ReminderScheduled
	t.NextReminderAt = &due
	t.AttemptCount = 0
	t.LastReminderError = ""
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSent records a successful dispatch. The task stops scheduling further
// reminders; a follow-up reminder, if any, is a business rule owned by the
// task CRUD collaborator.
func (t *Task) MarkSent() error {
	if t.ReminderStatus != ReminderScheduled {
		return ErrInvalidTransition
	}

	t.ReminderStatus = ReminderSent
	t.NextReminderAt = nil
	t.LastReminderError = ""
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordTransientFailure increments the attempt counter and either reschedules
// the reminder at nextAttemptAt or, once maxAttempts is reached, moves the
// task to Failed.
func (t *Task) RecordTransientFailure(reason string, nextAttemptAt time.Time, maxAttempts int) error {
	if t.ReminderStatus != ReminderScheduled {
		return ErrInvalidTransition
	}

	t.AttemptCount++
	t.LastReminderError = reason
	t.UpdatedAt = time.Now().UTC()

	if t.AttemptCount >= maxAttempts {
		t.ReminderStatus = ReminderFailed
		t.NextReminderAt = nil
		return nil
	}

	next := nextAttemptAt.UTC()
	t.NextReminderAt = &next
	return nil
}

// RecordPermanentFailure moves the task to Failed regardless of the attempt
// budget, e.g. for an invalid recipient.
func (t *Task) RecordPermanentFailure(reason string) error {
	if t.ReminderStatus != ReminderScheduled {
		return ErrInvalidTransition
	}

	t.ReminderStatus = ReminderFailed
	t.NextReminderAt = nil
	t.LastReminderError = reason
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkReplied records an inbound reply correlated to this task.
func (t *Task) MarkReplied() error {
	if t.ReminderStatus != ReminderSent {
		return ErrInvalidTransition
	}

	t.ReminderStatus = ReminderReplied
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetReminder returns the task to Idle, clearing reminder bookkeeping.
// This is the explicit re-configuration escape hatch out of a terminal
// state: the task CRUD collaborator calls it before re-scheduling.
func (t *Task) ResetReminder() {
	t.ReminderStatus = ReminderIdle
	t.NextReminderAt = nil
	t.AttemptCount = 0
	t.LastReminderError = ""
	t.UpdatedAt = time.Now().UTC()
}

// CancelReminder moves the task to Cancelled. Permitted from any non-terminal
// state; cancelling an already-terminal reminder is a no-op.
func (t *Task) CancelReminder() {
	if t.ReminderStatus.Terminal() {
		return
	}

	t.ReminderStatus = ReminderCancelled
	t.NextReminderAt = nil
	t.UpdatedAt = time.Now().UTC()
}
