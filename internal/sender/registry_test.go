package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotery/reminder-api/internal/domain"
)

type noopSender struct{}

func (noopSender) Send(ctx context.Context, recipient, body string) (*Result, error) {
	return &Result{ProviderMessageID: "noop"}, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(domain.ChannelChat, noopSender{})

	s, err := registry.Get(domain.ChannelChat)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = registry.Get(domain.ChannelEmail)
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestIsPermanent(t *testing.T) {
	t.Parallel()

	assert.True(t, IsPermanent(ErrPermanent))
	assert.True(t, IsPermanent(errors.Join(errors.New("wrapper"), ErrPermanent)))
	assert.False(t, IsPermanent(errors.New("timeout")))
	assert.False(t, IsPermanent(nil))
}
