package sender

import (
	"errors"
	"fmt"

	"github.com/quotery/reminder-api/internal/domain"
)

// ErrUnknownChannel is returned when no sender is registered for a channel.
var ErrUnknownChannel = errors.New("no sender registered for channel")

// Registry maps reminder channels to their sender implementations. It is
// populated once at startup and read-only afterwards, so no locking is
// needed.
type Registry struct {
	senders map[domain.ReminderChannel]Sender
}

// NewRegistry creates an empty sender registry.
func NewRegistry() *Registry {
	return &Registry{
		senders: make(map[domain.ReminderChannel]Sender),
	}
}

// Register binds a sender to a channel, replacing any previous binding.
func (r *Registry) Register(channel domain.ReminderChannel, s Sender) {
	r.senders[channel] = s
}

// Get returns the sender bound to the channel.
// Returns ErrUnknownChannel if no sender is registered.
func (r *Registry) Get(channel domain.ReminderChannel) (Sender, error) {
	s, ok := r.senders[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}
	return s, nil
}
