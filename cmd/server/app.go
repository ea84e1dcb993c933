package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/quotery/reminder-api/internal/api"
	"github.com/quotery/reminder-api/internal/config"
	"github.com/quotery/reminder-api/internal/domain"
	"github.com/quotery/reminder-api/internal/platform/postgres"
	"github.com/quotery/reminder-api/internal/sender"
	"github.com/quotery/reminder-api/internal/service"
	"github.com/quotery/reminder-api/internal/service/auth"
	"github.com/quotery/reminder-api/internal/store"
)

// application holds the assembled dependency graph: stores, senders,
// services and the configuration they were built from.
type application struct {
	config *config.Config
	logger *slog.Logger

	taskStore store.TaskStore
	logStore  store.ReminderLogStore

	scheduler  *service.Scheduler
	correlator *service.Correlator
	jwtService auth.JWTService
}

// newApplication wires every component from configuration and the shared
// database pool. Construction is fail-fast: any invalid dependency surfaces
// here, before the server accepts traffic.
func newApplication(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*application, error) {
	taskStore := postgres.NewPostgresTaskStore(db)
	logStore := postgres.NewPostgresReminderLogStore(db)
	txRunner := store.NewSQLRunner(db)

	senders := sender.NewRegistry()
	senders.Register(domain.ChannelChat, sender.NewChatSender(cfg.Chat, logger))
	senders.Register(domain.ChannelEmail, sender.NewEmailSender(cfg.Email, logger))

	policy := service.RetryPolicy{
		MaxAttempts: cfg.Reminder.MaxAttempts,
		BackoffBase: cfg.Reminder.BackoffBase,
		BackoffCap:  cfg.Reminder.BackoffCap,
	}

	dispatcher, err := service.NewDispatcher(
		taskStore, logStore, senders, txRunner,
		policy, cfg.Reminder.SendTimeout, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	scheduler, err := service.NewScheduler(taskStore, dispatcher, service.SchedulerConfig{
		BatchSize:   cfg.Reminder.BatchSize,
		ClaimTTL:    cfg.Reminder.ClaimTTL,
		WorkerCount: cfg.Reminder.WorkerCount,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	correlator, err := service.NewCorrelator(taskStore, logStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlator: %w", err)
	}

	jwtService, err := auth.NewJWTService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	if cfg.Auth.CronUser == "" || cfg.Auth.CronPasswordHash == "" {
		logger.Warn("cron credentials are not configured; the batch endpoint will refuse requests")
	}

	return &application{
		config:     cfg,
		logger:     logger,
		taskStore:  taskStore,
		logStore:   logStore,
		scheduler:  scheduler,
		correlator: correlator,
		jwtService: jwtService,
	}, nil
}

// cronCredentials adapts the auth configuration for the reminder handler.
func (app *application) cronCredentials() api.CronCredentials {
	return api.CronCredentials{
		User:         app.config.Auth.CronUser,
		PasswordHash: app.config.Auth.CronPasswordHash,
	}
}
