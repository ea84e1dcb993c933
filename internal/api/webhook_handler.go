package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/quotery/reminder-api/internal/api/shared"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/service"
)

// webhookSecretHeader carries the shared secret on provider callbacks.
// Providers that cannot set headers may pass it as a "secret" query
// parameter instead.
const webhookSecretHeader = "X-Webhook-Secret"

// maxWebhookBody bounds the provider payload size.
const maxWebhookBody = 1 << 20 // 1 MiB

// EventCorrelator is the slice of the correlator the webhook endpoint needs.
type EventCorrelator interface {
	HandleProviderEvents(ctx context.Context, payload []byte) (*service.WebhookSummary, error)
}

// WebhookHandler handles provider delivery callbacks. An empty configured
// secret disables the check: the trust boundary then lives entirely in the
// network layer in front of this service.
type WebhookHandler struct {
	correlator EventCorrelator
	secret     string
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(correlator EventCorrelator, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		correlator: correlator,
		secret:     secret,
		logger:     logger.With(slog.String("component", "webhook_handler")),
	}
}

// HandleProviderEvents handles POST /api/webhooks/provider requests. The
// response is 200 whenever the payload was parseable, even when every event
// in it was skipped: the provider's retry machinery must not redeliver events
// this system has already decided to ignore.
func (h *WebhookHandler) HandleProviderEvents(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if !h.authorized(r) {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid webhook secret")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to read request body", err)
		return
	}

	summary, err := h.correlator.HandleProviderEvents(r.Context(), payload)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Failed to process provider events"
		if errors.Is(err, service.ErrMalformedPayload) {
			message = "Malformed provider payload"
		}
		shared.RespondWithErrorAndLog(w, r, status, message, err)
		return
	}

	log.Debug("processed provider webhook",
		slog.Int("events", summary.Events),
		slog.Int("recorded", summary.Recorded),
		slog.Int("skipped", summary.Skipped))

	shared.RespondWithJSON(w, r, http.StatusOK, WebhookSummaryResponse{
		Events:   summary.Events,
		Recorded: summary.Recorded,
		Skipped:  summary.Skipped,
	})
}

// authorized checks the shared secret from the header or, failing that, the
// query string. Comparison is constant-time.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}

	presented := r.Header.Get(webhookSecretHeader)
	if presented == "" {
		presented = r.URL.Query().Get("secret")
	}

	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.secret)) == 1
}
