package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/quotery/reminder-api/internal/api/shared"
	"github.com/quotery/reminder-api/internal/platform/logger"
	"github.com/quotery/reminder-api/internal/service"
	"github.com/quotery/reminder-api/internal/store"
)

// maxListLimit caps the page size of the reminder log read path.
const maxListLimit = 200

var errInvalidLimit = errors.New("limit must be a positive integer")

// BatchRunner is the slice of the scheduler the reminder endpoints need.
type BatchRunner interface {
	Run(ctx context.Context) (*service.RunSummary, error)
	RunOne(ctx context.Context, taskID uuid.UUID) (*service.DispatchResult, error)
}

// CronCredentials guard the batch endpoint. The endpoint is invoked by an
// external scheduler (cron) with basic auth; the password is configured as a
// bcrypt hash, never in the clear.
type CronCredentials struct {
	User         string
	PasswordHash string
}

// Configured reports whether both credential halves are set.
func (c CronCredentials) Configured() bool {
	return c.User != "" && c.PasswordHash != ""
}

// ReminderHandler handles the reminder pipeline's HTTP surface: the periodic
// batch trigger, the manual per-task re-trigger, and the log read path.
type ReminderHandler struct {
	runner    BatchRunner
	taskStore store.TaskStore
	logStore  store.ReminderLogStore
	cron      CronCredentials
	logger    *slog.Logger
}

// NewReminderHandler creates a new ReminderHandler.
func NewReminderHandler(
	runner BatchRunner,
	taskStore store.TaskStore,
	logStore store.ReminderLogStore,
	cron CronCredentials,
	logger *slog.Logger,
) *ReminderHandler {
	return &ReminderHandler{
		runner:    runner,
		taskStore: taskStore,
		logStore:  logStore,
		cron:      cron,
		logger:    logger.With(slog.String("component", "reminder_handler")),
	}
}

// RunReminderJob handles POST /api/reminders/run requests: one batch run over
// all currently-due reminders. Unconfigured credentials are a deployment
// error and produce a 500, not an open endpoint.
func (h *ReminderHandler) RunReminderJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if !h.cron.Configured() {
		log.Error("reminder job credentials are not configured")
		shared.RespondWithError(w, r, http.StatusInternalServerError,
			"Reminder job is not configured")
		return
	}

	user, password, ok := r.BasicAuth()
	if !ok || !h.cron.match(user, password) {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	summary, err := h.runner.Run(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to run reminder batch", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, runSummaryToResponse(summary))
}

// match compares presented credentials against the configured pair. Both
// comparisons are constant-time.
func (c CronCredentials) match(user, password string) bool {
	if subtle.ConstantTimeCompare([]byte(user), []byte(c.User)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// ForceDispatch handles POST /api/tasks/{id}/reminder requests: claim the
// task's scheduled reminder regardless of its due time and dispatch it now.
func (h *ReminderHandler) ForceDispatch(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	result, err := h.runner.RunOne(r.Context(), taskID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, DispatchResponse{
		Sent:              result.Sent,
		ProviderMessageID: result.ProviderMessageID,
		FailureReason:     result.FailureReason,
	})
}

// ListReminders handles GET /api/tasks/{id}/reminders requests: the task's
// reminder audit trail, newest first, bounded by the optional limit query
// parameter.
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit parameter")
		return
	}

	// Distinguish an unknown task from one with an empty log.
	if _, err := h.taskStore.GetByID(r.Context(), taskID); err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	entries, err := h.logStore.ListForTask(r.Context(), taskID, limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]ReminderLogEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, logEntryToResponse(entry))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// parseLimit validates the limit query parameter. Zero means "store default";
// the ceiling keeps one request from dragging an unbounded history.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errInvalidLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}
