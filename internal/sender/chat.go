package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/quotery/reminder-api/internal/config"
)

// ChatSender delivers reminders through the chat provider's HTTP API.
type ChatSender struct {
	client *http.Client
	apiURL string
	token  string
	from   string
	logger *slog.Logger
}

// NewChatSender creates a ChatSender from the chat channel configuration.
// The HTTP client carries no timeout of its own; the dispatcher bounds each
// call through the context.
func NewChatSender(cfg config.ChatConfig, logger *slog.Logger) *ChatSender {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ChatSender")
	}

	return &ChatSender{
		client: &http.Client{},
		apiURL: cfg.APIURL,
		token:  cfg.APIToken,
		from:   cfg.SenderID,
		logger: logger.With(slog.String("component", "chat_sender")),
	}
}

// chatMessageRequest is the provider's send-message payload.
type chatMessageRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

// chatMessageResponse is the provider's acknowledgment.
type chatMessageResponse struct {
	MessageID string `json:"messageId"`
}

// Send posts the message to the provider. A 4xx response is classified as
// permanent (the request itself is rejected, typically an invalid recipient);
// 5xx and transport errors are transient.
func (s *ChatSender) Send(ctx context.Context, recipient, body string) (*Result, error) {
	if recipient == "" {
		return nil, fmt.Errorf("%w: empty recipient", ErrPermanent)
	}

	payload, err := json.Marshal(chatMessageRequest{
		From: s.from,
		To:   recipient,
		Body: body,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat provider response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ack chatMessageResponse
		if err := json.Unmarshal(respBody, &ack); err != nil {
			return nil, fmt.Errorf("failed to decode chat provider response: %w", err)
		}
		if ack.MessageID == "" {
			return nil, fmt.Errorf("chat provider returned no message ID")
		}
		return &Result{ProviderMessageID: ack.MessageID}, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		s.logger.Warn("chat provider rejected message",
			slog.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("%w: chat provider rejected message (status %d)",
			ErrPermanent, resp.StatusCode)

	default:
		return nil, fmt.Errorf("chat provider unavailable (status %d)", resp.StatusCode)
	}
}
