package sender

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quotery/reminder-api/internal/config"
)

// smtpSendFn matches smtp.SendMail; replaced in tests.
type smtpSendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailSender delivers reminders over SMTP. The generated Message-ID header
// doubles as the provider message ID, since SMTP assigns none of its own.
type EmailSender struct {
	addr     string
	from     string
	auth     smtp.Auth
	sendMail smtpSendFn
	logger   *slog.Logger
}

// NewEmailSender creates an EmailSender from the email channel configuration.
func NewEmailSender(cfg config.EmailConfig, logger *slog.Logger) *EmailSender {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for EmailSender")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		host := cfg.SMTPAddr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}

	return &EmailSender{
		addr:     cfg.SMTPAddr,
		from:     cfg.From,
		auth:     auth,
		sendMail: smtp.SendMail,
		logger:   logger.With(slog.String("component", "email_sender")),
	}
}

// Send delivers the reminder as a plain-text email. A malformed recipient
// address is permanent; dial and IO failures are transient. net/smtp has no
// context support, so cancellation is checked around the blocking call and
// the deadline relies on the dispatcher's overall timeout accounting.
func (s *EmailSender) Send(ctx context.Context, recipient, body string) (*Result, error) {
	addr, err := mail.ParseAddress(recipient)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email address: %v", ErrPermanent, err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New(), messageIDDomain(s.from))

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", addr.Address)
	fmt.Fprintf(&msg, "Subject: Reminder\r\n")
	fmt.Fprintf(&msg, "Message-ID: %s\r\n", messageID)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(s.addr, s.auth, s.from, []string{addr.Address}, []byte(msg.String()))
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("email send cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("smtp send failed: %w", err)
		}
	}

	return &Result{ProviderMessageID: messageID}, nil
}

// messageIDDomain derives the Message-ID domain part from the sender address.
func messageIDDomain(from string) string {
	if i := strings.LastIndexByte(from, '@'); i >= 0 && i+1 < len(from) {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return "localhost"
}
