// Package sender defines the channel-sender capability used by the
// dispatcher: one implementation per delivery medium, selected through a
// registry keyed by the task's reminder channel.
package sender

import (
	"context"
	"errors"
)

// Sender delivers one message to one recipient over a specific medium.
// Implementations classify their own failures: a permanent failure (e.g. an
// invalid recipient) is wrapped with ErrPermanent, anything else is treated
// as transient and retried by later batch runs. The dispatcher treats this
// classification as authoritative.
// Version: 1.0
type Sender interface {
	// Send delivers body to recipient. The context carries the dispatch
	// timeout; implementations must honor cancellation.
	Send(ctx context.Context, recipient, body string) (*Result, error)
}

// Result is the outcome of a successful send.
type Result struct {
	// ProviderMessageID is the opaque identifier the channel provider
	// assigned to the delivered message.
	ProviderMessageID string
}

// ErrPermanent marks a send failure that will not succeed on retry.
// Senders wrap their permanent failures with this sentinel.
var ErrPermanent = errors.New("permanent send failure")

// IsPermanent reports whether the error is classified as permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
